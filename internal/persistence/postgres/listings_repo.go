package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/force23airr/NexusX-sub001/internal/persistence"
	"github.com/force23airr/NexusX-sub001/internal/pricing/types"
)

// listingsRepo implements persistence.ListingsRepo for PostgreSQL.
type listingsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewListingsRepo creates a new PostgreSQL listings repository.
func NewListingsRepo(db *sqlx.DB, timeout time.Duration) persistence.ListingsRepo {
	return &listingsRepo{db: db, timeout: timeout}
}

type listingRow struct {
	ID                string          `db:"id"`
	Slug              string          `db:"slug"`
	Name              string          `db:"name"`
	CategoryID        string          `db:"category_id"`
	Status            string          `db:"status"`
	FloorPrice        float64         `db:"floor_price"`
	CeilingPrice      sql.NullFloat64 `db:"ceiling_price"`
	CurrentPrice      float64         `db:"current_price"`
	CapacityPerMinute int             `db:"capacity_per_minute"`
}

// ListActive returns every ACTIVE listing.
func (r *listingsRepo) ListActive(ctx context.Context) ([]types.Listing, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT id, slug, name, category_id, status,
		       floor_price, ceiling_price, current_price, capacity_per_minute
		FROM listings
		WHERE status = 'ACTIVE'
		ORDER BY id`

	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active listings: %w", err)
	}
	defer rows.Close()

	var listings []types.Listing
	for rows.Next() {
		var row listingRow
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		listings = append(listings, toListing(row))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating listing rows: %w", err)
	}

	return listings, nil
}

// UpdatePrice writes a new current price for a listing.
func (r *listingsRepo) UpdatePrice(ctx context.Context, listingID string, price float64) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx,
		`UPDATE listings SET current_price = $1, updated_at = now() WHERE id = $2`,
		price, listingID)
	if err != nil {
		return fmt.Errorf("failed to update listing price: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to confirm price update: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("listing %s not found for price update", listingID)
	}
	return nil
}

func toListing(row listingRow) types.Listing {
	var ceiling *float64
	if row.CeilingPrice.Valid {
		v := row.CeilingPrice.Float64
		ceiling = &v
	}

	return types.Listing{
		ListingID:         row.ID,
		Slug:              row.Slug,
		Name:              row.Name,
		CategoryID:        row.CategoryID,
		Status:            types.ListingStatus(row.Status),
		FloorPriceUSDC:    row.FloorPrice,
		CeilingPriceUSDC:  ceiling,
		CurrentPriceUSDC:  row.CurrentPrice,
		CapacityPerMinute: row.CapacityPerMinute,
	}
}
