package model

import "time"

// ActivityAction describes what happened to a cost.
type ActivityAction string

// Activity actions.
const (
	ActionCreated ActivityAction = "created"
	ActionUpdated ActivityAction = "updated"
	ActionDeleted ActivityAction = "deleted"
)

// Valid reports whether a is a known action.
func (a ActivityAction) Valid() bool {
	switch a {
	case ActionCreated, ActionUpdated, ActionDeleted:
		return true
	}
	return false
}

// ActivityEvent records a mutation of a cost. EventID is unique per event
// and makes stream redelivery idempotent.
type ActivityEvent struct {
	ID         int64          `json:"id,omitempty"`
	EventID    string         `json:"event_id"`
	UserID     int64          `json:"user_id"`
	CostID     int64          `json:"cost_id"`
	Action     ActivityAction `json:"action"`
	Amount     float64        `json:"amount"`
	OccurredAt time.Time      `json:"occurred_at"`
}
