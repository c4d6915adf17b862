// Package listings declares persistence for rental listings, the sample
// business surface exposed behind the authenticated API.
package listings

import (
	"context"

	"github.com/dpavlenko/stayhub/internal/server/models"
)

// Repository defines the minimal listing operations the API exposes.
type Repository interface {
	Create(ctx context.Context, listing *models.Listing) (*models.Listing, error)
	List(ctx context.Context, limit, offset int) ([]*models.Listing, error)
}
