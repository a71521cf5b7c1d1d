// Package notify delivers intake completion webhooks.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ykozlov/learning-assistant/internal/domain"
)

const defaultTimeout = 10 * time.Second

// payload is the webhook body shape.
type payload struct {
	StudentName  string `json:"student_name"`
	StudentAge   int    `json:"student_age"`
	LearningGoal string `json:"learning_goal"`
	Track        string `json:"track"`
}

// Webhook posts completion payloads to a configured URL. Delivery is best
// effort: one attempt with a bounded timeout and no retry.
type Webhook struct {
	url    string
	client *http.Client
}

// NewWebhook creates a webhook notifier. A non-positive timeout falls back
// to the default.
func NewWebhook(url string, timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Webhook{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Notify posts the completed record as JSON. Non-2xx responses are errors.
func (w *Webhook) Notify(ctx context.Context, rec *domain.StudentRecord) error {
	body, err := json.Marshal(payload{
		StudentName:  rec.Name,
		StudentAge:   rec.Age,
		LearningGoal: rec.LearningGoal,
		Track:        string(rec.Track),
	})
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close webhook response body", "error", closeErr)
		}
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Disabled is a no-op notifier used when no webhook URL is configured.
type Disabled struct{}

// Notify implements the notifier contract and does nothing.
func (Disabled) Notify(context.Context, *domain.StudentRecord) error {
	return nil
}
