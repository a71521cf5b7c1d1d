package domain

import (
	"time"
)

// StudentRecord is the persisted result of a completed intake, keyed by
// session id with upsert semantics.
type StudentRecord struct {
	SessionID    string    `json:"session_id"`
	Name         string    `json:"student_name"`
	Age          int       `json:"student_age"`
	LearningGoal string    `json:"learning_goal"`
	Track        Track     `json:"track"`
	CreatedAt    time.Time `json:"created_at"`
}
