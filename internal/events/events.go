package events

import "context"

// Event types broadcast on the user_events exchange. Consumers receive every
// event and filter by EventType.
const (
	TypeUserCreated         = "UserCreated"
	TypeUserUpdated         = "UserUpdated"
	TypeUserDeleted         = "UserDeleted"
	TypeUserPasswordChanged = "UserPasswordChanged"
)

// UserEvent is the wire payload published after each account mutation.
// Field names are part of the contract with downstream consumers.
type UserEvent struct {
	EventType string `json:"EventType"`
	UserID    int64  `json:"UserId"`
	Email     string `json:"Email,omitempty"`
}

// Publisher delivers user events to the broker. Delivery is at-least-once
// best effort: a synchronous error means the event was not handed to the
// broker, success means nothing more than that the publish call returned.
type Publisher interface {
	PublishUserEvent(ctx context.Context, e UserEvent) error
}
