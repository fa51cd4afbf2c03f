package opticalpath

import (
	"time"

	"github.com/google/uuid"
)

// TransitionStatus is the outcome of a SetPath call.
type TransitionStatus string

const (
	// StatusCompleted means every move finished successfully.
	StatusCompleted TransitionStatus = "completed"

	// StatusPartial means at least one move failed; the others were applied.
	StatusPartial TransitionStatus = "partial"

	// StatusAbandoned means the caller stopped waiting before all moves finished.
	StatusAbandoned TransitionStatus = "abandoned"
)

// MoveRecord is one MoveAbs request issued during a transition.
type MoveRecord struct {
	Role    string         `json:"role"`
	Axes    map[string]any `json:"axes"`
	Restore bool           `json:"restore,omitempty"`
}

// MoveFailure records a move that did not complete. Abandoned moves were
// still running when the caller stopped waiting and are not counted in
// Transition.MovesFailed.
type MoveFailure struct {
	Role      string `json:"role"`
	ErrorMsg  string `json:"error"`
	Abandoned bool   `json:"abandoned,omitempty"`
}

// Transition is the audit record of one SetPath call.
type Transition struct {
	ID          string           `json:"id"`
	FromMode    string           `json:"from_mode,omitempty"`
	ToMode      string           `json:"to_mode"`
	TriggeredAt time.Time        `json:"triggered_at"`
	CompletedAt time.Time        `json:"completed_at"`
	Status      TransitionStatus `json:"status"`
	Moves       []MoveRecord     `json:"moves"`
	Restored    []string         `json:"restored,omitempty"`
	Failures    []MoveFailure    `json:"failures,omitempty"`
	MovesFailed int              `json:"moves_failed"`
	DurationMS  int64            `json:"duration_ms"`

	// err aggregates the move errors; only set on the live record.
	err error
}

// MovesTotal returns the number of moves issued.
func (t *Transition) MovesTotal() int {
	return len(t.Moves)
}

// Err returns the combined error of all failed moves, or nil.
func (t *Transition) Err() error {
	return t.err
}

// GenerateID creates a new transition ID.
func GenerateID() string {
	return uuid.New().String()
}
