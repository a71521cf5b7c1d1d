// Package extract pulls structured profile fields out of free-text chat
// messages using an LLM completion capability.
package extract

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ykozlov/learning-assistant/internal/domain"
)

// notFoundSentinel is the token the capability returns when the requested
// field is not present in the message.
const notFoundSentinel = "NOT_FOUND"

// ErrUnavailable is returned when no extraction capability is configured.
var ErrUnavailable = errors.New("extraction capability unavailable")

var digitRun = regexp.MustCompile(`\d+`)

// Completer is the raw LLM call behind field extraction.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Extractor asks the completion capability for a single named field and
// normalizes the result.
type Extractor struct {
	llm     Completer
	timeout time.Duration
}

// New creates an extractor around a completion capability. The timeout
// bounds each capability call; zero disables the bound.
func New(llm Completer, timeout time.Duration) *Extractor {
	return &Extractor{llm: llm, timeout: timeout}
}

// Extract requests the named field from the message, supplying the known
// profile fields as disambiguating context. It returns nil when the field is
// absent or fails validation, and an error only when the capability call
// itself failed; callers treat both as not-found for the turn but should log
// the error case.
func (e *Extractor) Extract(ctx context.Context, field domain.Field, message string, profile domain.StudentProfile) (*domain.FieldValue, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	raw, err := e.llm.Complete(ctx, systemPrompt(field, profile), message)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", field, err)
	}

	return normalize(field, raw), nil
}

func systemPrompt(field domain.Field, profile domain.StudentProfile) string {
	age := "None"
	if profile.Age != 0 {
		age = strconv.Itoa(profile.Age)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Extract %s from the user's message.\n\n", field)
	b.WriteString("Current data:\n")
	fmt.Fprintf(&b, "Name: %s\n", orNone(profile.Name))
	fmt.Fprintf(&b, "Age: %s\n", age)
	fmt.Fprintf(&b, "Goal: %s\n\n", orNone(profile.LearningGoal))
	fmt.Fprintf(&b, "If not present, return only: %s", notFoundSentinel)
	return b.String()
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}

// normalize trims the capability output and applies per-field validation.
// The sentinel and empty output mean not-found. Age takes the first run of
// digits and must land in [MinStudentAge, MaxStudentAge]; name and goal are
// passed through verbatim.
func normalize(field domain.Field, raw string) *domain.FieldValue {
	text := strings.TrimSpace(raw)
	if text == "" || strings.EqualFold(text, notFoundSentinel) {
		return nil
	}

	if field == domain.FieldAge {
		digits := digitRun.FindString(text)
		if digits == "" {
			return nil
		}
		age, err := strconv.Atoi(digits)
		if err != nil || age < domain.MinStudentAge || age > domain.MaxStudentAge {
			return nil
		}
		return &domain.FieldValue{Age: age}
	}

	return &domain.FieldValue{Text: text}
}

// Disabled is a Completer used when no API key is configured. Every call
// fails with ErrUnavailable, which the state machine treats as not-found.
type Disabled struct{}

// Complete implements Completer.
func (Disabled) Complete(context.Context, string, string) (string, error) {
	return "", ErrUnavailable
}
