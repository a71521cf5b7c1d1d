package domain

import (
	"time"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat message. Messages are immutable once appended.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ConversationState holds everything known about one intake session between
// turns: the chronological message history, the evolving profile, and the
// step label the last turn finished in.
type ConversationState struct {
	SessionID   string         `json:"session_id"`
	Messages    []Message      `json:"messages"`
	Profile     StudentProfile `json:"profile"`
	CurrentStep string         `json:"current_step"`
	Completed   bool           `json:"completed"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// NewConversationState returns a fresh default state for a session id.
func NewConversationState(sessionID string) *ConversationState {
	now := time.Now()
	return &ConversationState{
		SessionID:   sessionID,
		CurrentStep: "start",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Append adds a message to the conversation history.
func (c *ConversationState) Append(role, content string) {
	c.Messages = append(c.Messages, Message{Role: role, Content: content})
	c.UpdatedAt = time.Now()
}

// Clone returns a deep copy so stores can hand out state without sharing
// the message slice with callers.
func (c *ConversationState) Clone() *ConversationState {
	clone := *c
	clone.Messages = make([]Message, len(c.Messages))
	copy(clone.Messages, c.Messages)
	return &clone
}
