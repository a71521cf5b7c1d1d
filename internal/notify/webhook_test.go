package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ykozlov/learning-assistant/internal/domain"
)

func testRecord() *domain.StudentRecord {
	return &domain.StudentRecord{
		SessionID:    "s1",
		Name:         "John",
		Age:          17,
		LearningGoal: "manage anxiety before finals",
		Track:        domain.TrackWellbeing,
		CreatedAt:    time.Now(),
	}
}

func TestWebhookPostsPayload(t *testing.T) {
	t.Parallel()

	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q, want application/json", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, 2*time.Second)
	if err := w.Notify(context.Background(), testRecord()); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	if got["student_name"] != "John" {
		t.Errorf("student_name = %v, want John", got["student_name"])
	}
	if got["student_age"] != float64(17) {
		t.Errorf("student_age = %v, want 17", got["student_age"])
	}
	if got["learning_goal"] != "manage anxiety before finals" {
		t.Errorf("learning_goal = %v", got["learning_goal"])
	}
	if got["track"] != "wellbeing" {
		t.Errorf("track = %v, want wellbeing", got["track"])
	}
}

func TestWebhookNon2xxIsError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, 2*time.Second)
	if err := w.Notify(context.Background(), testRecord()); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

func TestWebhookUnreachableIsError(t *testing.T) {
	t.Parallel()

	w := NewWebhook("http://127.0.0.1:1", 200*time.Millisecond)
	if err := w.Notify(context.Background(), testRecord()); err == nil {
		t.Fatal("expected error for unreachable webhook")
	}
}

func TestDisabledNotifierIsNoOp(t *testing.T) {
	t.Parallel()

	if err := (Disabled{}).Notify(context.Background(), testRecord()); err != nil {
		t.Fatalf("Disabled.Notify returned error: %v", err)
	}
}
