// Package session persists the client's current credential pair. The store
// holds at most one session; every rotation overwrites it wholesale, and a
// logout (voluntary or forced) clears it.
package session

import "context"

// Session is the locally persisted credential state.
type Session struct {
	UserID       string
	AccessToken  string
	RefreshToken string
}

// Store is the durable home of the current session.
type Store interface {
	// Save overwrites the stored session.
	Save(ctx context.Context, s *Session) error

	// Load returns the stored session, or ok=false when none exists.
	Load(ctx context.Context) (*Session, bool, error)

	// Clear removes the stored session. Clearing an empty store is a no-op.
	Clear(ctx context.Context) error
}
