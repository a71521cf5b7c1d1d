package translog

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoggerWritesPerSessionNDJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := New(Config{Enabled: true, Dir: dir, QueueSize: 16}, slog.Default())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Log(Event{SessionID: "sess-1", Role: "user", Content: "Hi there"})
	logger.Log(Event{SessionID: "sess-1", Role: "assistant", Content: "May I know your name?", Track: "academic"})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	path := filepath.Join(dir, "sess-1.ndjson")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read transcript: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 transcript lines, got %d", len(lines))
	}

	var got Event
	if err := json.Unmarshal([]byte(lines[1]), &got); err != nil {
		t.Fatalf("failed to unmarshal transcript line: %v", err)
	}
	if got.Role != "assistant" || got.Content != "May I know your name?" || got.Track != "academic" {
		t.Errorf("unexpected event: %+v", got)
	}
	if got.Timestamp == "" {
		t.Error("expected timestamp to be populated")
	}
	if _, err := time.Parse(time.RFC3339Nano, got.Timestamp); err != nil {
		t.Errorf("timestamp not RFC3339Nano: %v", err)
	}
}

func TestDisabledLoggerWritesNothing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := New(Config{Enabled: false, Dir: dir}, slog.Default())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Log(Event{SessionID: "sess-1", Role: "user", Content: "hello"})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no transcript files, got %d", len(entries))
	}
}

func TestFileNameForSessionSanitizes(t *testing.T) {
	t.Parallel()

	if got := fileNameForSession("../evil/../../path"); strings.Contains(got, "/") {
		t.Errorf("file name contains path separator: %q", got)
	}
	if got := fileNameForSession(""); got != "unknown.ndjson" {
		t.Errorf("empty session id mapped to %q", got)
	}
}
