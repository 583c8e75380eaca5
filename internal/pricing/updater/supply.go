package updater

import (
	"context"
	"time"

	"github.com/force23airr/NexusX-sub001/internal/persistence"
	"github.com/force23airr/NexusX-sub001/internal/pricing/types"
)

// transactionWindow is the trailing window used to estimate utilization
// from recent transaction volume.
const transactionWindow = 60 * time.Second

// supplyEstimator assembles a SupplyState per listing from the
// Postgres-backed competitor count and recent transaction volume, the
// assembly step spec.md leaves to "the Price Updater" (section 4.4
// step 2).
type supplyEstimator struct {
	supply persistence.SupplyRepo
}

func newSupplyEstimator(supply persistence.SupplyRepo) *supplyEstimator {
	return &supplyEstimator{supply: supply}
}

// Estimate builds a SupplyState for one listing. CapacityPerMinute comes
// from the listing record itself; utilization is derived from observed
// transaction volume against that capacity.
func (s *supplyEstimator) Estimate(ctx context.Context, listing types.Listing) (types.SupplyState, error) {
	competitors, err := s.supply.CompetitorCount(ctx, listing.CategoryID, listing.ListingID)
	if err != nil {
		return types.SupplyState{}, err
	}

	txCount, err := s.supply.TransactionsInWindow(ctx, listing.ListingID, transactionWindow)
	if err != nil {
		return types.SupplyState{}, err
	}

	utilization := 0.0
	if listing.CapacityPerMinute > 0 {
		// txCount is over transactionWindow (60s); CapacityPerMinute is
		// already a per-60s figure, so they compare directly.
		utilization = 100 * float64(txCount) / float64(listing.CapacityPerMinute)
		if utilization > 100 {
			utilization = 100
		}
	}

	return types.SupplyState{
		CategoryID:         listing.CategoryID,
		CompetitorCount:    competitors,
		IsUnique:           competitors == 0,
		CapacityPerMinute:  listing.CapacityPerMinute,
		UtilizationPercent: utilization,
	}, nil
}
