package order

import (
	"time"

	"github.com/google/uuid"
)

// Action approval states.
const (
	ActionPending  = "pending"
	ActionApproved = "approved"
	ActionRejected = "rejected"
)

// PendingAction is an action awaiting external approval. The engine stores
// it in the pending_actions channel for the turn and hands it to the
// approval collaborator; it never inspects the approval outcome itself.
type PendingAction struct {
	ActionID    string         `json:"action_id"`
	ActionType  string         `json:"action_type"`
	Description string         `json:"description"`
	Payload     map[string]any `json:"payload,omitempty"`
	Status      string         `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
}

// NewPendingAction creates a pending action of the given type.
func NewPendingAction(actionType, description string, payload map[string]any) PendingAction {
	return PendingAction{
		ActionID:    uuid.NewString(),
		ActionType:  actionType,
		Description: description,
		Payload:     payload,
		Status:      ActionPending,
		CreatedAt:   time.Now().UTC(),
	}
}
