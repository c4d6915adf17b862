// ListingService: the thin business surface exposed behind the
// authenticated API. It exists so the client pipeline has something real to
// call; the interesting machinery lives in TokenService.
package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dpavlenko/stayhub/internal/server/models"
	"github.com/dpavlenko/stayhub/internal/server/repositories/repomanager"
)

const (
	defaultListingPageSize = 20
	maxListingPageSize     = 100
)

// ListingService reads and creates rental listings.
type ListingService struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
}

func NewListingService(db *sql.DB, m repomanager.RepositoryManager) *ListingService {
	return &ListingService{db: db, repos: m}
}

// List returns a page of listings, newest first.
func (s *ListingService) List(ctx context.Context, limit, offset int) ([]*models.Listing, error) {
	if limit <= 0 {
		limit = defaultListingPageSize
	}
	if limit > maxListingPageSize {
		limit = maxListingPageSize
	}
	if offset < 0 {
		offset = 0
	}
	result, err := s.repos.Listings(s.db).List(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("error listing listings: %w", err)
	}
	return result, nil
}

// Create stores a new listing owned by ownerID.
func (s *ListingService) Create(ctx context.Context, ownerID, title, city string, pricePerNight int64) (*models.Listing, error) {
	listing := &models.Listing{
		OwnerID:       ownerID,
		Title:         title,
		City:          city,
		PricePerNight: pricePerNight,
	}
	created, err := s.repos.Listings(s.db).Create(ctx, listing)
	if err != nil {
		return nil, fmt.Errorf("error creating listing: %w", err)
	}
	return created, nil
}
