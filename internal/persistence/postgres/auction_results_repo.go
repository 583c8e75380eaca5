package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/force23airr/NexusX-sub001/internal/persistence"
	"github.com/force23airr/NexusX-sub001/internal/pricing/types"
)

// auctionResultsRepo implements persistence.AuctionResultsRepo for
// PostgreSQL.
type auctionResultsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewAuctionResultsRepo creates a new PostgreSQL auction-results
// repository.
func NewAuctionResultsRepo(db *sqlx.DB, timeout time.Duration) persistence.AuctionResultsRepo {
	return &auctionResultsRepo{db: db, timeout: timeout}
}

// Insert writes one auction_results row, storing the full multiplier
// breakdown and input snapshot as JSONB for post-hoc debugging.
func (r *auctionResultsRepo) Insert(ctx context.Context, result types.AuctionResult) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	multipliersJSON, err := json.Marshal(result.Multipliers)
	if err != nil {
		return fmt.Errorf("failed to marshal multipliers: %w", err)
	}
	inputsJSON, err := json.Marshal(result.Inputs)
	if err != nil {
		return fmt.Errorf("failed to marshal inputs: %w", err)
	}

	query := `
		INSERT INTO auction_results (
			listing_id, price, floor, multipliers, inputs, compute_time_us, computed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = r.db.ExecContext(ctx, query,
		result.ListingID, result.Price, result.FloorPrice,
		multipliersJSON, inputsJSON, result.ComputeTimeUs, result.ComputedAt)
	if err != nil {
		return fmt.Errorf("failed to insert auction result: %w", err)
	}
	return nil
}
