// Package translog writes per-session conversation transcripts as NDJSON
// files, off the request path.
package translog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const defaultQueueSize = 256

// Event is one transcript line.
type Event struct {
	Timestamp string `json:"ts"`
	SessionID string `json:"session_id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Track     string `json:"track,omitempty"`
	Step      string `json:"step,omitempty"`
}

// Logger appends transcript events to one NDJSON file per session.
type Logger interface {
	// Log enqueues an event. Never blocks: events are dropped with a
	// warning when the queue is full.
	Log(event Event)

	// Close drains the queue and releases resources.
	Close() error
}

// Config controls transcript logging.
type Config struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// New returns an async transcript logger, or a no-op logger when disabled.
func New(cfg Config, logger *slog.Logger) (Logger, error) {
	if !cfg.Enabled {
		return noopLogger{}, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create transcript directory: %w", err)
	}

	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}

	l := &fileLogger{
		dir:   cfg.Dir,
		queue: make(chan Event, size),
		done:  make(chan struct{}),
		log:   logger,
	}
	go l.run()
	return l, nil
}

type fileLogger struct {
	dir       string
	queue     chan Event
	done      chan struct{}
	log       *slog.Logger
	closeOnce sync.Once
}

func (l *fileLogger) Log(event Event) {
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	select {
	case l.queue <- event:
	default:
		l.log.Warn("transcript queue full, dropping event", "session_id", event.SessionID)
	}
}

func (l *fileLogger) run() {
	defer close(l.done)
	for event := range l.queue {
		l.write(event)
	}
}

func (l *fileLogger) write(event Event) {
	path := filepath.Join(l.dir, fileNameForSession(event.SessionID))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		l.log.Warn("failed to open transcript file", "path", path, "error", err)
		return
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			l.log.Warn("failed to close transcript file", "path", path, "error", closeErr)
		}
	}()

	data, err := json.Marshal(event)
	if err != nil {
		l.log.Warn("failed to marshal transcript event", "error", err)
		return
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		l.log.Warn("failed to write transcript event", "path", path, "error", err)
	}
}

func (l *fileLogger) Close() error {
	l.closeOnce.Do(func() { close(l.queue) })
	<-l.done
	return nil
}

// fileNameForSession maps a session id to a safe file name.
func fileNameForSession(sessionID string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, sessionID)
	if safe == "" {
		safe = "unknown"
	}
	return safe + ".ndjson"
}

type noopLogger struct{}

func (noopLogger) Log(Event) {}

func (noopLogger) Close() error { return nil }
