package sequence

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DefaultWindowCap bounds the per-user outcome window.
const DefaultWindowCap = 50

// OutcomeEntry is one applied decision outcome in the rolling window.
type OutcomeEntry struct {
	DecisionID uuid.UUID  `json:"decision_id"`
	ActionID   *uuid.UUID `json:"action_id,omitempty"`
	Value      float64    `json:"value"`
	At         time.Time  `json:"at"`
}

// PushOutcome appends an entry and drops the oldest past the limit.
func PushOutcome(window []OutcomeEntry, e OutcomeEntry, limit int) []OutcomeEntry {
	if limit <= 0 {
		limit = DefaultWindowCap
	}
	window = append(window, e)
	if len(window) > limit {
		window = window[len(window)-limit:]
	}
	return window
}

// PositiveRate is the share of window entries with positive value.
func PositiveRate(window []OutcomeEntry) float64 {
	if len(window) == 0 {
		return 0
	}
	var positive int
	for _, e := range window {
		if e.Value > 0 {
			positive++
		}
	}
	return float64(positive) / float64(len(window))
}

// MarshalWindow serializes the window for the user_state.outcome_window
// column.
func MarshalWindow(window []OutcomeEntry) (datatypes.JSON, error) {
	if len(window) == 0 {
		return datatypes.JSON([]byte("[]")), nil
	}
	raw, err := json.Marshal(window)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

// UnmarshalWindow decodes a stored window column; empty input is an empty
// window.
func UnmarshalWindow(raw datatypes.JSON) ([]OutcomeEntry, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var window []OutcomeEntry
	if err := json.Unmarshal(raw, &window); err != nil {
		return nil, err
	}
	return window, nil
}
