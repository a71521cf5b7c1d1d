package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ykozlov/learning-assistant/internal/domain"
	"github.com/ykozlov/learning-assistant/internal/session"
	"github.com/ykozlov/learning-assistant/internal/translog"
)

type stubStepper struct {
	response string
	err      error
	calls    int
}

func (s *stubStepper) Step(_ context.Context, state *domain.ConversationState, message string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	state.Append(domain.RoleUser, message)
	state.Append(domain.RoleAssistant, s.response)
	return s.response, nil
}

type fakeRepo struct {
	records map[string]*domain.StudentRecord
}

func (f *fakeRepo) SaveStudentRecord(_ context.Context, rec *domain.StudentRecord) error {
	if f.records == nil {
		f.records = make(map[string]*domain.StudentRecord)
	}
	f.records[rec.SessionID] = rec
	return nil
}

func (f *fakeRepo) GetStudentRecord(_ context.Context, sessionID string) (*domain.StudentRecord, error) {
	return f.records[sessionID], nil
}

func (f *fakeRepo) GetConversation(context.Context, string) (*domain.ConversationState, error) {
	return nil, nil
}

func (f *fakeRepo) UpsertConversation(context.Context, *domain.ConversationState) error {
	return nil
}

func (f *fakeRepo) DeleteConversation(context.Context, string) error { return nil }

func (f *fakeRepo) CleanupExpiredConversations(context.Context, time.Duration) (int64, error) {
	return 0, nil
}

func (f *fakeRepo) Ping(context.Context) error { return nil }

func (f *fakeRepo) Close() error { return nil }

func newTestHandler(stepper Stepper, repo *fakeRepo) *ChatHandler {
	if repo == nil {
		repo = &fakeRepo{}
	}
	nolog, _ := translog.New(translog.Config{}, nil)
	return NewChatHandler(stepper, session.NewMemoryStore(), repo, NewRateLimiter(100, time.Minute), nolog)
}

func newTestRouter(h *ChatHandler) http.Handler {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func postChat(t *testing.T, router http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleChat(t *testing.T) {
	t.Parallel()

	h := newTestHandler(&stubStepper{response: "May I know your name?"}, nil)
	router := newTestRouter(h)

	rec := postChat(t, router, `{"message":"hi there","session_id":"sess-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.Response != "May I know your name?" {
		t.Errorf("response = %q, want the name question", resp.Response)
	}
	if resp.SessionID != "sess-1" {
		t.Errorf("session_id = %q, want sess-1", resp.SessionID)
	}
}

func TestHandleChatPersistsState(t *testing.T) {
	t.Parallel()

	h := newTestHandler(&stubStepper{response: "ok"}, nil)
	router := newTestRouter(h)

	postChat(t, router, `{"message":"hello","session_id":"sess-2"}`)

	state, err := h.sessions.Get(context.Background(), "sess-2")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if state == nil {
		t.Fatal("expected stored session state")
	}
	if len(state.Messages) != 2 {
		t.Errorf("stored %d messages, want 2", len(state.Messages))
	}
}

func TestHandleChatInvalidJSON(t *testing.T) {
	t.Parallel()

	h := newTestHandler(&stubStepper{response: "ok"}, nil)
	router := newTestRouter(h)

	rec := postChat(t, router, `{"message": `)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleChatEmptyMessage(t *testing.T) {
	t.Parallel()

	h := newTestHandler(&stubStepper{response: "ok"}, nil)
	router := newTestRouter(h)

	rec := postChat(t, router, `{"message":"   ","session_id":"sess-3"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleChatInvalidSessionID(t *testing.T) {
	t.Parallel()

	h := newTestHandler(&stubStepper{response: "ok"}, nil)
	router := newTestRouter(h)

	for _, id := range []string{"", "has spaces", "bad/slash"} {
		rec := postChat(t, router, fmt.Sprintf(`{"message":"hi","session_id":%q}`, id))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("session id %q: status = %d, want %d", id, rec.Code, http.StatusBadRequest)
		}
	}
}

func TestHandleChatWorkflowError(t *testing.T) {
	t.Parallel()

	h := newTestHandler(&stubStepper{err: errors.New("boom")}, nil)
	router := newTestRouter(h)

	rec := postChat(t, router, `{"message":"hi","session_id":"sess-4"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
}

func TestHandleChatRateLimit(t *testing.T) {
	t.Parallel()

	stepper := &stubStepper{response: "ok"}
	repo := &fakeRepo{}
	nolog, _ := translog.New(translog.Config{}, nil)
	h := NewChatHandler(stepper, session.NewMemoryStore(), repo, NewRateLimiter(2, time.Minute), nolog)
	router := newTestRouter(h)

	for i := 0; i < 2; i++ {
		rec := postChat(t, router, `{"message":"hi","session_id":"sess-5"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i, rec.Code, http.StatusOK)
		}
	}

	rec := postChat(t, router, `{"message":"hi","session_id":"sess-5"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}

	// Other sessions have their own budget.
	rec = postChat(t, router, `{"message":"hi","session_id":"sess-6"}`)
	if rec.Code != http.StatusOK {
		t.Errorf("other session status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestCreateSession(t *testing.T) {
	t.Parallel()

	h := newTestHandler(&stubStepper{response: "ok"}, nil)
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/api/session", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !sessionIDPattern.MatchString(resp["session_id"]) {
		t.Errorf("session_id %q does not match the accepted id format", resp["session_id"])
	}
}

func TestGetRecord(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{records: map[string]*domain.StudentRecord{
		"sess-7": {
			SessionID:    "sess-7",
			Name:         "John",
			Age:          17,
			LearningGoal: "manage exam stress",
			Track:        domain.TrackWellbeing,
		},
	}}
	h := newTestHandler(&stubStepper{response: "ok"}, repo)
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/sess-7/record", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var got domain.StudentRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	if got.Name != "John" || got.Age != 17 || got.Track != domain.TrackWellbeing {
		t.Errorf("record = %+v, want John/17/wellbeing", got)
	}
}

func TestGetRecordNotFound(t *testing.T) {
	t.Parallel()

	h := newTestHandler(&stubStepper{response: "ok"}, nil)
	router := newTestRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/missing/record", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
