// Package classify routes student messages to a support track using fixed
// keyword sets.
package classify

import (
	"strings"

	"github.com/ykozlov/learning-assistant/internal/domain"
)

var skillKeywords = []string{
	"career", "coding", "programming", "skill", "tools", "communication",
}

var wellbeingKeywords = []string{
	"stress", "focus", "motivation", "anxiety", "worry", "struggle", "mental", "burnout",
}

// Classify maps a raw student message to a support track. Matching is
// case-insensitive substring containment. Skill keywords are checked before
// wellbeing keywords, so skill wins when both sets match; academic is the
// catch-all when nothing matches.
func Classify(message string) domain.Track {
	msg := strings.ToLower(message)

	for _, k := range skillKeywords {
		if strings.Contains(msg, k) {
			return domain.TrackSkill
		}
	}
	for _, k := range wellbeingKeywords {
		if strings.Contains(msg, k) {
			return domain.TrackWellbeing
		}
	}

	return domain.TrackAcademic
}
