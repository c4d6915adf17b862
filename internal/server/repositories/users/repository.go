// Package users declares the server-side repository contract for marketplace
// accounts.
package users

import (
	"context"

	"github.com/dpavlenko/stayhub/internal/server/models"
)

// Repository defines persistence operations for users.
type Repository interface {
	// Create inserts a new user and returns it with the generated id.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByEmail returns the user with the given email or common.ErrorNotFound.
	GetByEmail(ctx context.Context, email string) (*models.User, error)

	// GetByID returns the user with the given id or common.ErrorNotFound.
	GetByID(ctx context.Context, id string) (*models.User, error)

	// SetBlocked flips the blocked flag for the user, returning
	// common.ErrorNotFound when no such user exists.
	SetBlocked(ctx context.Context, id string, blocked bool) error
}
