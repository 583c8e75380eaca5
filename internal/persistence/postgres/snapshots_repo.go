package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/force23airr/NexusX-sub001/internal/persistence"
	"github.com/force23airr/NexusX-sub001/internal/pricing/types"
)

// snapshotsRepo implements persistence.SnapshotsRepo for PostgreSQL.
type snapshotsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewSnapshotsRepo creates a new PostgreSQL price-snapshots repository.
func NewSnapshotsRepo(db *sqlx.DB, timeout time.Duration) persistence.SnapshotsRepo {
	return &snapshotsRepo{db: db, timeout: timeout}
}

// Insert writes one price_snapshots row.
func (r *snapshotsRepo) Insert(ctx context.Context, snapshot types.PriceSnapshot) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var ceiling *float64
	if snapshot.Inputs.CeilingPrice != nil {
		ceiling = snapshot.Inputs.CeilingPrice
	}

	query := `
		INSERT INTO price_snapshots (
			listing_id, floor, ceiling, current, previous, price_change_pct,
			demand_multiplier, scarcity_multiplier, quality_multiplier,
			momentum_multiplier, temporal_multiplier, combined_multiplier,
			windows_at_floor, windows_at_ceiling, computed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.db.ExecContext(ctx, query,
		snapshot.ListingID, snapshot.FloorPrice, ceiling, snapshot.Price,
		snapshot.PreviousPrice, snapshot.PriceChangePct,
		snapshot.Multipliers.Demand, snapshot.Multipliers.Scarcity,
		snapshot.Multipliers.Quality, snapshot.Multipliers.Momentum,
		snapshot.Multipliers.Temporal, snapshot.Multipliers.Combined,
		snapshot.WindowsAtFloor, snapshot.WindowsAtCeiling, snapshot.ComputedAt)
	if err != nil {
		return fmt.Errorf("failed to insert price snapshot: %w", err)
	}
	return nil
}
