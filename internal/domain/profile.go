// Package domain contains core domain types for the intake assistant.
package domain

import (
	"strings"
)

// Track is the support category a student is routed to.
type Track string

const (
	// TrackAcademic is the default track when no keyword matches.
	TrackAcademic Track = "academic"
	// TrackSkill covers career and practical-skill support.
	TrackSkill Track = "skill"
	// TrackWellbeing covers stress and motivation support.
	TrackWellbeing Track = "wellbeing"
)

// Display returns the human-readable track name: underscores become spaces
// and each word is title-cased.
func (t Track) Display() string {
	words := strings.Fields(strings.ReplaceAll(string(t), "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Field identifies one of the required profile fields.
type Field string

const (
	FieldName Field = "student_name"
	FieldAge  Field = "student_age"
	FieldGoal Field = "learning_goal"
)

// Age bounds accepted during extraction, inclusive.
const (
	MinStudentAge = 5
	MaxStudentAge = 100
)

// StudentProfile holds the evolving intake data for one session.
// A zero value for a field means the field has not been collected yet.
type StudentProfile struct {
	Name         string `json:"student_name,omitempty"`
	Age          int    `json:"student_age,omitempty"`
	LearningGoal string `json:"learning_goal,omitempty"`
	Track        Track  `json:"track,omitempty"`
}

// MissingField returns the first uncollected field in the fixed priority
// order name, age, goal, or "" when the profile is complete.
func (p *StudentProfile) MissingField() Field {
	if p.Name == "" {
		return FieldName
	}
	if p.Age == 0 {
		return FieldAge
	}
	if p.LearningGoal == "" {
		return FieldGoal
	}
	return ""
}

// Complete reports whether all required fields have been collected.
func (p *StudentProfile) Complete() bool {
	return p.MissingField() == ""
}

// SetField records an extracted value for the named field. Fields are never
// cleared within a session: empty values and already-set fields are ignored.
func (p *StudentProfile) SetField(field Field, value FieldValue) {
	switch field {
	case FieldName:
		if p.Name == "" && value.Text != "" {
			p.Name = value.Text
		}
	case FieldAge:
		if p.Age == 0 && value.Age != 0 {
			p.Age = value.Age
		}
	case FieldGoal:
		if p.LearningGoal == "" && value.Text != "" {
			p.LearningGoal = value.Text
		}
	}
}

// FieldValue is a single extracted field value. Text carries name and goal
// values; Age carries a validated age.
type FieldValue struct {
	Text string
	Age  int
}
