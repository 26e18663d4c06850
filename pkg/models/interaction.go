package models

import (
	"time"

	"github.com/google/uuid"
)

// Interaction is one weighted (user, item) observation consumed by the
// collaborative-filtering ensemble. The in-memory interaction log is the
// source of truth; the sparse matrix is a derived, rebuildable view.
type Interaction struct {
	ID        uuid.UUID  `json:"id"`
	UserID    string     `json:"user_id"`
	ItemID    string     `json:"item_id"`
	Type      SignalType `json:"interaction_type"`
	Timestamp time.Time  `json:"timestamp"`
	Duration  float64    `json:"duration"`
	Intensity float64    `json:"intensity"`
}

// CFResult is one algorithm's ranked suggestion for a user, before ensemble
// aggregation.
type CFResult struct {
	UserID      string  `json:"user_id"`
	ItemID      string  `json:"item_id"`
	Score       float64 `json:"score"`
	Method      string  `json:"method"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
}
