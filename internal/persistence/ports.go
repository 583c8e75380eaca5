// Package persistence defines the ports the pricing core uses to read
// and write durable state, plus a PostgreSQL adapter. The pricing core
// itself never imports database/sql directly — it depends only on these
// interfaces, which keeps the engine, tracker, and scorer free of I/O.
package persistence

import (
	"context"
	"time"

	"github.com/force23airr/NexusX-sub001/internal/pricing/types"
)

// ListingsRepo is the external store's view of marketplace listings.
type ListingsRepo interface {
	// ListActive returns every ACTIVE listing with its pricing
	// parameters and current stored price.
	ListActive(ctx context.Context) ([]types.Listing, error)
	// UpdatePrice writes a new current price for a listing. This is a
	// critical-path write: failures abort that listing's update but
	// never the whole cycle.
	UpdatePrice(ctx context.Context, listingID string, price float64) error
}

// SnapshotsRepo persists PriceSnapshot rows (append-only history).
type SnapshotsRepo interface {
	Insert(ctx context.Context, snapshot types.PriceSnapshot) error
}

// AuctionResultsRepo persists AuctionResult rows.
type AuctionResultsRepo interface {
	Insert(ctx context.Context, result types.AuctionResult) error
}

// QualityRollupsRepo reads the latest quality rollup for a listing.
type QualityRollupsRepo interface {
	// Latest returns the most recent QualityMetrics row for a listing,
	// or ok=false if the listing has no rollup yet (the caller should
	// fall back to types.DefaultQualityMetrics()).
	Latest(ctx context.Context, listingID string) (metrics types.QualityMetrics, ok bool, err error)
}

// SupplyRepo answers the Price Updater's supply-side questions:
// competitor counts per category and recent transaction volume per
// listing.
type SupplyRepo interface {
	// CompetitorCount returns the number of other ACTIVE listings in
	// categoryID, excluding excludeListingID.
	CompetitorCount(ctx context.Context, categoryID, excludeListingID string) (int, error)
	// TransactionsInWindow returns the number of transactions for a
	// listing within the trailing window duration (e.g. 60s).
	TransactionsInWindow(ctx context.Context, listingID string, window time.Duration) (int, error)
}
