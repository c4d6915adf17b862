// Package events publishes server-side session events to the message broker.
// Clients subscribe to learn about forced session terminations in real time,
// without waiting for their next 401.
package events

import (
	"context"
	"time"
)

// SessionTerminated is emitted when every session of a user is revoked,
// typically because an administrator blocked the account.
type SessionTerminated struct {
	UserID     string    `json:"user_id"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher emits session events. Publishing is best-effort: the revocation
// itself is already durable in the database before any event is sent.
type Publisher interface {
	SessionTerminated(ctx context.Context, ev SessionTerminated) error
	Close() error
}
