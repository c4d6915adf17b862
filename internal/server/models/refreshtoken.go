package models

import "time"

// RefreshToken is one issued refresh credential. A row exists only while the
// token is still exchangeable: rotation, expiry sweep, and revocation all end
// with the row deleted, so "row absent" is the replay signal.
type RefreshToken struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
