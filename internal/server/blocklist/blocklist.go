// Package blocklist tracks administratively blocked accounts for the
// residual lifetime of their access tokens. Revoking refresh rows kills
// future rotations, but an already-issued access token stays
// cryptographically valid until it expires; the blocklist is what lets the
// authorization middleware reject it in the meantime.
package blocklist

import (
	"context"
	"time"
)

// Blocklist marks and checks blocked users. Entries only need to outlive the
// longest outstanding access token, so implementations may expire them.
type Blocklist interface {
	MarkBlocked(ctx context.Context, userID string, ttl time.Duration) error
	IsBlocked(ctx context.Context, userID string) (bool, error)
}
