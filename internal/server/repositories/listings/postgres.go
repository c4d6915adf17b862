package listings

import (
	"context"
	"fmt"

	"github.com/dpavlenko/stayhub/internal/dbx"
	"github.com/dpavlenko/stayhub/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, listing *models.Listing) (*models.Listing, error) {
	query := `
		INSERT INTO listings (owner_id, title, city, price_per_night)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	row := r.db.QueryRowContext(ctx, query, listing.OwnerID, listing.Title, listing.City, listing.PricePerNight)
	if err := row.Scan(&listing.ID, &listing.CreatedAt); err != nil {
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	return listing, nil
}

func (r *PostgresRepository) List(ctx context.Context, limit, offset int) ([]*models.Listing, error) {
	query := `
		SELECT id, owner_id, title, city, price_per_night, created_at
		FROM listings
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Listing
	for rows.Next() {
		l := &models.Listing{}
		if err := rows.Scan(&l.ID, &l.OwnerID, &l.Title, &l.City, &l.PricePerNight, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
