package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/force23airr/NexusX-sub001/internal/persistence"
)

// supplyRepo implements persistence.SupplyRepo for PostgreSQL, counting
// competitors from the listings table and transaction volume from the
// transactions table.
type supplyRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewSupplyRepo creates a new PostgreSQL supply repository.
func NewSupplyRepo(db *sqlx.DB, timeout time.Duration) persistence.SupplyRepo {
	return &supplyRepo{db: db, timeout: timeout}
}

// CompetitorCount returns the number of other ACTIVE listings sharing
// categoryID.
func (r *supplyRepo) CompetitorCount(ctx context.Context, categoryID, excludeListingID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var count int
	err := r.db.QueryRowxContext(ctx, `
		SELECT COUNT(*) FROM listings
		WHERE category_id = $1 AND status = 'ACTIVE' AND id != $2`,
		categoryID, excludeListingID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count competitors: %w", err)
	}
	return count, nil
}

// TransactionsInWindow returns the number of transactions for a listing
// within the trailing window.
func (r *supplyRepo) TransactionsInWindow(ctx context.Context, listingID string, window time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var count int
	err := r.db.QueryRowxContext(ctx, `
		SELECT COUNT(*) FROM transactions
		WHERE listing_id = $1 AND ts >= now() - $2::interval`,
		listingID, fmt.Sprintf("%d seconds", int(window.Seconds()))).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions in window: %w", err)
	}
	return count, nil
}
