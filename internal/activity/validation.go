package activity

import (
	"errors"
	"fmt"

	"github.com/costtrack/costtrack/internal/model"
)

// Validate checks an event before it is persisted.
func Validate(e model.ActivityEvent) error {
	if e.EventID == "" {
		return errors.New("event_id is required")
	}
	if e.UserID <= 0 {
		return errors.New("user_id must be positive")
	}
	if e.CostID <= 0 {
		return errors.New("cost_id must be positive")
	}
	if !e.Action.Valid() {
		return fmt.Errorf("unknown action %q", e.Action)
	}
	if e.OccurredAt.IsZero() {
		return errors.New("occurred_at must be set")
	}
	return nil
}
