// Package refreshtokens declares the server-side repository contract for
// managing refresh tokens in persistent storage.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dpavlenko/stayhub/internal/server/models"
)

// Repository defines operations for issuing, consuming, and revoking refresh
// tokens. The row set is the single authority for replay detection: a token
// string that resolves to no row has been rotated, swept, or revoked.
type Repository interface {
	// Create stores a new refresh token for userID with an expiry of
	// now+validity. A collision on the token string yields
	// common.ErrDuplicateToken.
	Create(ctx context.Context, userID string, token string, validity time.Duration) error

	// Consume atomically looks up and deletes the row for the given token
	// string, returning its metadata. When no row matches it returns
	// common.ErrorNotFound; the caller must treat that as reuse, not as a
	// soft miss.
	Consume(ctx context.Context, token string) (*models.RefreshToken, error)

	// Delete removes a refresh token by its token string. Deleting a
	// non-existent token is not an error.
	Delete(ctx context.Context, token string) error

	// DeleteAllForUser removes every outstanding refresh token for the user.
	// A user with no rows is not an error.
	DeleteAllForUser(ctx context.Context, userID string) error

	// DeleteExpired sweeps rows whose expiry has passed and reports how many
	// were removed.
	DeleteExpired(ctx context.Context) (int64, error)
}
