// Package intake implements the turn-by-turn conversation state machine:
// classify track, find the first missing profile field, extract it from the
// latest message, then either ask the next question or finalize the intake.
package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ykozlov/learning-assistant/internal/classify"
	"github.com/ykozlov/learning-assistant/internal/domain"
)

// Conversation step labels. The label stored between turns is informational
// only: classification re-runs on every turn.
const (
	StepStart     = "start"
	StepRouter    = "router"
	StepAcademic  = "academic"
	StepSkill     = "skill"
	StepWellbeing = "wellbeing"
)

// ErrEmptyMessage is returned when a turn arrives without message content.
var ErrEmptyMessage = errors.New("message is empty")

// questions are the canned prompts for each still-missing field.
var questions = map[domain.Field]string{
	domain.FieldName: "May I know your name?",
	domain.FieldAge:  "Could you tell me your age?",
	domain.FieldGoal: "What would you like help with?",
}

// Extractor pulls a single profile field out of a message. A nil value with
// a nil error means the field was not present.
type Extractor interface {
	Extract(ctx context.Context, field domain.Field, message string, profile domain.StudentProfile) (*domain.FieldValue, error)
}

// RecordSaver persists the completed intake record keyed by session id.
type RecordSaver interface {
	SaveStudentRecord(ctx context.Context, rec *domain.StudentRecord) error
}

// Notifier announces a completed intake to an external listener. Delivery is
// best effort; failures never reach the student.
type Notifier interface {
	Notify(ctx context.Context, rec *domain.StudentRecord) error
}

// Workflow drives one conversation turn at a time for a single session.
type Workflow struct {
	extractor Extractor
	records   RecordSaver
	notifier  Notifier
}

// NewWorkflow wires the state machine to its collaborators.
func NewWorkflow(extractor Extractor, records RecordSaver, notifier Notifier) *Workflow {
	return &Workflow{
		extractor: extractor,
		records:   records,
		notifier:  notifier,
	}
}

// Step processes one user message against the session's conversation state.
// It appends the message, re-classifies the track, attempts extraction for
// the highest-priority missing field, and produces the assistant response,
// which is appended to the history before returning. On a persistence
// failure the state is left without the assistant message so the student can
// retry the turn.
func (w *Workflow) Step(ctx context.Context, state *domain.ConversationState, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", ErrEmptyMessage
	}

	state.Append(domain.RoleUser, message)

	// Track is reassigned every turn, so a later message with stronger
	// keywords moves the student between tracks.
	track := classify.Classify(message)
	state.Profile.Track = track
	state.CurrentStep = stepForTrack(track)

	if missing := state.Profile.MissingField(); missing != "" {
		value, err := w.extractor.Extract(ctx, missing, message, state.Profile)
		switch {
		case err != nil:
			// Capability failure is recoverable: the field stays unset and
			// the question is asked again this turn.
			slog.Warn("field extraction failed",
				"session_id", state.SessionID,
				"field", missing,
				"error", err,
			)
		case value != nil:
			state.Profile.SetField(missing, *value)
		}
	}

	response, err := w.respond(ctx, state)
	if err != nil {
		return "", err
	}

	state.Append(domain.RoleAssistant, response)
	return response, nil
}

// respond produces the turn's assistant message: the next question while a
// field is missing, otherwise the completion message after running the
// completion side effects exactly once per session.
func (w *Workflow) respond(ctx context.Context, state *domain.ConversationState) (string, error) {
	if missing := state.Profile.MissingField(); missing != "" {
		return questions[missing], nil
	}

	if !state.Completed {
		rec := &domain.StudentRecord{
			SessionID:    state.SessionID,
			Name:         state.Profile.Name,
			Age:          state.Profile.Age,
			LearningGoal: state.Profile.LearningGoal,
			Track:        state.Profile.Track,
			CreatedAt:    time.Now(),
		}

		if err := w.records.SaveStudentRecord(ctx, rec); err != nil {
			return "", fmt.Errorf("save student record: %w", err)
		}

		if err := w.notifier.Notify(ctx, rec); err != nil {
			slog.Warn("intake notification failed",
				"session_id", state.SessionID,
				"error", err,
			)
		}

		state.Completed = true
		slog.Info("intake completed",
			"session_id", state.SessionID,
			"track", state.Profile.Track,
		)
	}

	return fmt.Sprintf(
		"Thank you %s. I've recorded your details and routed you to the %s track. Our team will help you with: %s",
		state.Profile.Name, state.Profile.Track.Display(), state.Profile.LearningGoal,
	), nil
}

func stepForTrack(track domain.Track) string {
	switch track {
	case domain.TrackSkill:
		return StepSkill
	case domain.TrackWellbeing:
		return StepWellbeing
	default:
		return StepAcademic
	}
}
