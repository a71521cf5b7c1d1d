package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ykozlov/learning-assistant/internal/domain"
	"github.com/ykozlov/learning-assistant/internal/intake"
	"github.com/ykozlov/learning-assistant/internal/session"
	"github.com/ykozlov/learning-assistant/internal/store"
	"github.com/ykozlov/learning-assistant/internal/translog"
)

// maxRequestBodySize is the maximum allowed chat request body (1MB).
const maxRequestBodySize = 1 << 20

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// Stepper runs one conversation turn. Implemented by intake.Workflow.
type Stepper interface {
	Step(ctx context.Context, state *domain.ConversationState, message string) (string, error)
}

// ChatRequest is the inbound chat message body.
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// ChatResponse is the chat reply body.
type ChatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
}

// ChatHandler handles intake chat requests.
type ChatHandler struct {
	workflow    Stepper
	sessions    session.Store
	locks       *session.Locks
	repo        store.Repository
	rateLimiter *RateLimiter
	transcript  translog.Logger
}

// NewChatHandler creates a chat handler. A nil transcript logger disables
// transcripts.
func NewChatHandler(workflow Stepper, sessions session.Store, repo store.Repository, limiter *RateLimiter, transcript translog.Logger) *ChatHandler {
	return &ChatHandler{
		workflow:    workflow,
		sessions:    sessions,
		locks:       session.NewLocks(),
		repo:        repo,
		rateLimiter: limiter,
		transcript:  transcript,
	}
}

// HandleChat handles POST /api/chat requests: load the session under its
// lock, run one conversation turn, store the updated state, and return the
// assistant response.
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		Error(w, http.StatusBadRequest, "message is required")
		return
	}
	if !sessionIDPattern.MatchString(req.SessionID) {
		Error(w, http.StatusBadRequest, "invalid session id")
		return
	}
	if !h.rateLimiter.Allow(req.SessionID) {
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	// Serialize the read-step-write cycle per session so concurrent
	// messages for the same session cannot drop each other's updates.
	unlock := h.locks.Lock(req.SessionID)
	defer unlock()

	state, err := session.GetOrCreate(r.Context(), h.sessions, req.SessionID)
	if err != nil {
		slog.Error("Failed to load session state", "session_id", req.SessionID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to process message")
		return
	}

	response, err := h.workflow.Step(r.Context(), state, req.Message)
	if err != nil {
		if errors.Is(err, intake.ErrEmptyMessage) {
			Error(w, http.StatusBadRequest, "message is required")
			return
		}
		slog.Error("Conversation turn failed", "session_id", req.SessionID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to process message, please try again")
		return
	}

	if err := h.sessions.Put(r.Context(), req.SessionID, state); err != nil {
		slog.Error("Failed to store session state", "session_id", req.SessionID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to process message")
		return
	}

	if h.transcript != nil {
		h.transcript.Log(translog.Event{
			SessionID: req.SessionID,
			Role:      domain.RoleUser,
			Content:   req.Message,
		})
		h.transcript.Log(translog.Event{
			SessionID: req.SessionID,
			Role:      domain.RoleAssistant,
			Content:   response,
			Track:     string(state.Profile.Track),
			Step:      state.CurrentStep,
		})
	}

	slog.Info("Chat turn processed",
		"session_id", req.SessionID,
		"step", state.CurrentStep,
		"completed", state.Completed,
		"message_length", len(req.Message),
	)

	JSON(w, http.StatusOK, ChatResponse{Response: response, SessionID: req.SessionID})
}

// CreateSession handles POST /api/session requests, minting a session id for
// clients that do not generate their own.
func (h *ChatHandler) CreateSession(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, map[string]string{"session_id": uuid.NewString()})
}

// GetRecord handles GET /api/sessions/{sessionID}/record requests, returning
// the persisted intake record for a completed session.
func (h *ChatHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if !sessionIDPattern.MatchString(sessionID) {
		Error(w, http.StatusBadRequest, "invalid session id")
		return
	}

	rec, err := h.repo.GetStudentRecord(r.Context(), sessionID)
	if err != nil {
		slog.Error("Failed to load student record", "session_id", sessionID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to load record")
		return
	}
	if rec == nil {
		Error(w, http.StatusNotFound, "record not found")
		return
	}

	JSON(w, http.StatusOK, rec)
}

// RegisterRoutes registers intake routes.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", h.HandleChat)
		r.Post("/session", h.CreateSession)
		r.Get("/sessions/{sessionID}/record", h.GetRecord)
	})
}
