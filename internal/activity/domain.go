package activity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/masig/pricebook/internal/shared"
)

// Action classifies a recorded user action.
type Action string

const (
	ActionAdded   Action = "added"
	ActionEdited  Action = "edited"
	ActionDeleted Action = "deleted"
	ActionViewed  Action = "viewed"
)

// UnknownEmail is stored when the actor has no email on record.
const UnknownEmail = "unknown@email.com"

// Actions lists every supported action in display order.
func Actions() []Action {
	return []Action{ActionAdded, ActionEdited, ActionDeleted, ActionViewed}
}

// ParseAction validates a raw action string.
func ParseAction(raw string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Actions() {
		if a == known {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: unknown action %q", shared.ErrValidation, raw)
}

// Entry is one persisted activity log row.
type Entry struct {
	ID          uuid.UUID      `json:"id"`
	UserID      uuid.NullUUID  `json:"user_id"`
	UserEmail   string         `json:"user_email"`
	Action      Action         `json:"action_type"`
	ProductCode *string        `json:"product_code"`
	ProductName *string        `json:"product_name"`
	Details     map[string]any `json:"details,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Params describes an action to record on behalf of the current actor.
type Params struct {
	Action      Action
	ProductCode string
	ProductName string
	Details     map[string]any
}

// ListFilter narrows the activity log listing and exports.
type ListFilter struct {
	From   *time.Time
	To     *time.Time
	Action string
	Limit  int
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
