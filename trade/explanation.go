package trade

import (
	"fmt"
	"strings"
	"time"
)

// BeginnerFriendlyField is the only field the backfill writes.
const BeginnerFriendlyField = "beginner_friendly_entry"

// Explanation is the narrative record attached to one Position.
type Explanation struct {
	ID                    string    `json:"-"`
	PositionID            string    `json:"position_id"`
	CreatedTS             time.Time `json:"created_ts"`
	PlainEnglishEntry     string    `json:"plain_english_entry"`
	BeginnerFriendlyEntry string    `json:"beginner_friendly_entry"`
	ExitReason            *string   `json:"exit_reason"`
	ModelNotes            string    `json:"model_notes"`
}

func DecodeExplanation(id string, data map[string]any) (Explanation, error) {
	var e Explanation
	if err := decode(timestamps(data, "created_ts"), &e); err != nil {
		return Explanation{}, fmt.Errorf("explanation %s: %w", id, err)
	}
	e.ID = id
	if strings.TrimSpace(e.PositionID) == "" {
		return Explanation{}, fmt.Errorf("explanation %s: %w: position_id is required", id, ErrValidation)
	}
	return e, nil
}

// NeedsBackfill reports whether the beginner-friendly text is missing.
func (e Explanation) NeedsBackfill() bool {
	return strings.TrimSpace(e.BeginnerFriendlyEntry) == ""
}

func (e Explanation) Fields() map[string]any {
	f := map[string]any{
		"position_id":             e.PositionID,
		"created_ts":              e.CreatedTS,
		"plain_english_entry":     e.PlainEnglishEntry,
		"beginner_friendly_entry": e.BeginnerFriendlyEntry,
		"exit_reason":             nil,
		"model_notes":             e.ModelNotes,
	}
	if e.ExitReason != nil {
		f["exit_reason"] = *e.ExitReason
	}
	return f
}
