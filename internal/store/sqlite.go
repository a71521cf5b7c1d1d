package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ykozlov/learning-assistant/internal/domain"
	"github.com/ykozlov/learning-assistant/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db             *sql.DB
	conversationMu sync.Mutex // Serializes conversation writes to prevent SQLITE_BUSY
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS student_sessions (
		session_id TEXT PRIMARY KEY,
		student_name TEXT NOT NULL,
		student_age INTEGER NOT NULL,
		learning_goal TEXT NOT NULL,
		track TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS conversations (
		session_id TEXT PRIMARY KEY,
		current_step TEXT NOT NULL,
		completed INTEGER NOT NULL DEFAULT 0,
		profile_json TEXT NOT NULL,
		messages_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations(updated_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveStudentRecord upserts a completed intake record keyed by session id.
// Retries with exponential backoff when the database is locked.
func (s *SQLiteStore) SaveStudentRecord(ctx context.Context, rec *domain.StudentRecord) error {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		err = s.saveStudentRecordOnce(ctx, rec)
		if err == nil {
			return nil
		}
		if shared.IsSQLiteConflictError(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i)
			slog.Debug("SaveStudentRecord hit a locked database, retrying",
				"session_id", rec.SessionID,
				"attempt", i+1,
				"delay", delay)
			time.Sleep(delay)
			continue
		}
		break
	}
	return fmt.Errorf("save student record for %s: %w", rec.SessionID, err)
}

func (s *SQLiteStore) saveStudentRecordOnce(ctx context.Context, rec *domain.StudentRecord) error {
	query := `
	INSERT INTO student_sessions (session_id, student_name, student_age, learning_goal, track, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		student_name = excluded.student_name,
		student_age = excluded.student_age,
		learning_goal = excluded.learning_goal,
		track = excluded.track,
		created_at = excluded.created_at`

	_, err := s.db.ExecContext(ctx, query,
		rec.SessionID, rec.Name, rec.Age, rec.LearningGoal,
		string(rec.Track), rec.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert student record: %w", err)
	}
	return nil
}

// GetStudentRecord retrieves a persisted record, or nil when absent.
func (s *SQLiteStore) GetStudentRecord(ctx context.Context, sessionID string) (*domain.StudentRecord, error) {
	query := `
		SELECT session_id, student_name, student_age, learning_goal, track, created_at
		FROM student_sessions WHERE session_id = ?`

	row := s.db.QueryRowContext(ctx, query, sessionID)

	var rec domain.StudentRecord
	var track string
	var createdAt int64

	err := row.Scan(&rec.SessionID, &rec.Name, &rec.Age, &rec.LearningGoal, &track, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan student record: %w", err)
	}

	rec.Track = domain.Track(track)
	rec.CreatedAt = time.Unix(createdAt, 0)

	return &rec, nil
}

// GetConversation retrieves stored conversation state. Undecodable rows are
// treated as absent so a corrupt session resets instead of crashing turns.
func (s *SQLiteStore) GetConversation(ctx context.Context, sessionID string) (*domain.ConversationState, error) {
	s.conversationMu.Lock()
	defer s.conversationMu.Unlock()

	query := `
		SELECT session_id, current_step, completed, profile_json, messages_json, created_at, updated_at
		FROM conversations WHERE session_id = ?`

	row := s.db.QueryRowContext(ctx, query, sessionID)

	var state domain.ConversationState
	var profileJSON, messagesJSON string
	var createdAt, updatedAt int64

	err := row.Scan(
		&state.SessionID, &state.CurrentStep, &state.Completed,
		&profileJSON, &messagesJSON, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan conversation: %w", err)
	}

	if err := json.Unmarshal([]byte(profileJSON), &state.Profile); err != nil {
		slog.Warn("Discarding conversation with unreadable profile", "session_id", sessionID, "error", err)
		return nil, nil
	}
	if err := json.Unmarshal([]byte(messagesJSON), &state.Messages); err != nil {
		slog.Warn("Discarding conversation with unreadable messages", "session_id", sessionID, "error", err)
		return nil, nil
	}

	state.CreatedAt = time.Unix(createdAt, 0)
	state.UpdatedAt = time.Unix(updatedAt, 0)

	return &state, nil
}

// UpsertConversation creates or updates conversation state.
func (s *SQLiteStore) UpsertConversation(ctx context.Context, state *domain.ConversationState) error {
	s.conversationMu.Lock()
	defer s.conversationMu.Unlock()

	profileJSON, err := json.Marshal(state.Profile)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	messagesJSON, err := json.Marshal(state.Messages)
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}

	query := `
		INSERT INTO conversations (
			session_id, current_step, completed, profile_json, messages_json, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			current_step = excluded.current_step,
			completed = excluded.completed,
			profile_json = excluded.profile_json,
			messages_json = excluded.messages_json,
			updated_at = excluded.updated_at`

	_, err = s.db.ExecContext(ctx, query,
		state.SessionID, state.CurrentStep, state.Completed,
		string(profileJSON), string(messagesJSON),
		state.CreatedAt.Unix(), state.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}
	return nil
}

// DeleteConversation removes conversation state.
func (s *SQLiteStore) DeleteConversation(ctx context.Context, sessionID string) error {
	s.conversationMu.Lock()
	defer s.conversationMu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return nil
}

// CleanupExpiredConversations removes conversations idle longer than ttl.
func (s *SQLiteStore) CleanupExpiredConversations(ctx context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl).Unix()
	result, err := s.db.ExecContext(ctx, `DELETE FROM conversations WHERE updated_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup expired conversations: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
