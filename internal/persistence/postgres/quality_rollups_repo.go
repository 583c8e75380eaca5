package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/force23airr/NexusX-sub001/internal/persistence"
	"github.com/force23airr/NexusX-sub001/internal/pricing/types"
)

// qualityRollupsRepo implements persistence.QualityRollupsRepo for
// PostgreSQL.
type qualityRollupsRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewQualityRollupsRepo creates a new PostgreSQL quality-rollups
// repository.
func NewQualityRollupsRepo(db *sqlx.DB, timeout time.Duration) persistence.QualityRollupsRepo {
	return &qualityRollupsRepo{db: db, timeout: timeout}
}

// Latest returns the most recent quality rollup for a listing.
func (r *qualityRollupsRepo) Latest(ctx context.Context, listingID string) (types.QualityMetrics, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	query := `
		SELECT uptime_percent, median_latency_ms, p99_latency_ms,
		       error_rate_percent, average_rating, rating_count, composite_score
		FROM quality_rollups
		WHERE listing_id = $1`

	var m types.QualityMetrics
	err := r.db.QueryRowxContext(ctx, query, listingID).Scan(
		&m.UptimePercent, &m.MedianLatencyMs, &m.P99LatencyMs,
		&m.ErrorRatePercent, &m.AverageRating, &m.RatingCount, &m.CompositeScore)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.QualityMetrics{}, false, nil
		}
		return types.QualityMetrics{}, false, fmt.Errorf("failed to load quality rollup: %w", err)
	}

	return m, true, nil
}
