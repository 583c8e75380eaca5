// Package updater implements the Price Updater: the periodic worker
// that ties the Demand Tracker, stored quality rollups, and the Pricing
// Engine together into a bounded-concurrency cycle, diffs against stored
// prices, and publishes only the ticks that actually changed.
package updater

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/force23airr/NexusX-sub001/infra/breakers"
	"github.com/force23airr/NexusX-sub001/internal/config"
	"github.com/force23airr/NexusX-sub001/internal/metrics"
	"github.com/force23airr/NexusX-sub001/internal/persistence"
	"github.com/force23airr/NexusX-sub001/internal/pricing/demand"
	"github.com/force23airr/NexusX-sub001/internal/pricing/engine"
	"github.com/force23airr/NexusX-sub001/internal/pricing/types"
)

// Repos bundles the persistence ports the worker depends on.
type Repos struct {
	Listings       persistence.ListingsRepo
	Snapshots      persistence.SnapshotsRepo
	AuctionResults persistence.AuctionResultsRepo
	QualityRollups persistence.QualityRollupsRepo
	Supply         persistence.SupplyRepo
}

// TickPublisher is the port the worker publishes changed prices
// through. *pubsub.Publisher satisfies this; tests supply fakes.
type TickPublisher interface {
	PublishTick(ctx context.Context, tick types.PriceTick, historyEntry types.HistoryEntry) error
}

// Worker runs the pricing cycle on a ticker, one cycle at a time.
type Worker struct {
	cfg     func() config.PricingConfig
	engine  *engine.Engine
	tracker *demand.Tracker
	repos   Repos
	supply  *supplyEstimator
	pub     TickPublisher

	metrics    *metrics.Registry
	dbBreaker  *breakers.Breaker
	pubBreaker *breakers.Breaker
	log        zerolog.Logger

	running atomic.Bool

	boundsMu sync.Mutex
	atFloor  map[string]int
	atCeil   map[string]int
}

// New creates a Price Updater worker. cfgFn returns the current config
// on each call, so live config reloads apply to the next cycle.
func New(
	cfgFn func() config.PricingConfig,
	eng *engine.Engine,
	tracker *demand.Tracker,
	repos Repos,
	pub TickPublisher,
	reg *metrics.Registry,
	dbBreaker *breakers.Breaker,
	pubBreaker *breakers.Breaker,
	logger zerolog.Logger,
) *Worker {
	return &Worker{
		cfg:        cfgFn,
		engine:     eng,
		tracker:    tracker,
		repos:      repos,
		supply:     newSupplyEstimator(repos.Supply),
		pub:        pub,
		metrics:    reg,
		dbBreaker:  dbBreaker,
		pubBreaker: pubBreaker,
		log:        logger.With().Str("component", "price_updater").Logger(),
		atFloor:    make(map[string]int),
		atCeil:     make(map[string]int),
	}
}

// Run starts the ticker loop and blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	cfg := w.cfg()
	ticker := time.NewTicker(cfg.UpdateInterval())
	defer ticker.Stop()

	w.log.Info().Dur("interval", cfg.UpdateInterval()).Msg("price updater starting")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.runCycleGuarded(ctx)
		}
	}
}

// runCycleGuarded is the single-flight guard: if the previous cycle is
// still running when the ticker fires again, this tick is skipped
// rather than stacking concurrent cycles.
func (w *Worker) runCycleGuarded(ctx context.Context) {
	if !w.running.CompareAndSwap(false, true) {
		w.metrics.CyclesSkipped.Inc()
		w.log.Warn().Msg("skipping cycle: previous cycle still running")
		return
	}
	defer w.running.Store(false)

	cycleID := uuid.New().String()[:8]
	log := w.log.With().Str("cycle_id", cycleID).Logger()

	cfg := w.cfg()
	cycleCtx, cancel := context.WithTimeout(ctx, cfg.CycleDeadline())
	defer cancel()

	timer := w.metrics.StartCycle()
	if err := w.RunCycle(cycleCtx, cfg); err != nil {
		timer.Stop("error")
		log.Error().Err(err).Msg("price updater cycle failed")
		return
	}
	timer.Stop("ok")
	log.Debug().Msg("price updater cycle complete")
}

// RunCycle lists every ACTIVE listing, prices each with bounded
// concurrency, and publishes+persists only the listings whose price
// changed. Individual listing failures are logged and counted; they
// never abort the rest of the cycle.
func (w *Worker) RunCycle(ctx context.Context, cfg config.PricingConfig) error {
	listings, err := w.listActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active listings: %w", err)
	}
	w.metrics.ActiveListings.Set(float64(len(listings)))

	sem := make(chan struct{}, cfg.MaxConcurrentFetches)
	var wg sync.WaitGroup

	for _, listing := range listings {
		listing := listing
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if err := w.priceOne(ctx, listing); err != nil {
				w.metrics.CycleErrors.WithLabelValues("price_listing").Inc()
				w.log.Error().Err(err).Str("listing_id", listing.ListingID).Msg("failed to price listing")
			}
		}()
	}
	wg.Wait()

	return nil
}

func (w *Worker) listActive(ctx context.Context) ([]types.Listing, error) {
	result, err := w.dbBreaker.Execute(func() (any, error) {
		return w.repos.Listings.ListActive(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]types.Listing), nil
}

// priceOne prices a single listing end to end: assemble inputs, compute
// the price, and if it changed, persist and publish.
func (w *Worker) priceOne(ctx context.Context, listing types.Listing) error {
	quality, err := w.qualityFor(ctx, listing.ListingID)
	if err != nil {
		return fmt.Errorf("quality lookup: %w", err)
	}

	supply, err := w.supply.Estimate(ctx, listing)
	if err != nil {
		return fmt.Errorf("supply estimate: %w", err)
	}

	demandState := w.tracker.ComputeDemandState(listing.ListingID)

	result := w.engine.ComputePrice(types.AuctionInputs{
		ListingID:     listing.ListingID,
		FloorPrice:    listing.FloorPriceUSDC,
		CeilingPrice:  listing.CeilingPriceUSDC,
		Demand:        demandState,
		Quality:       quality,
		Supply:        supply,
		PreviousPrice: listing.CurrentPriceUSDC,
	})

	if result.Price == listing.CurrentPriceUSDC {
		return nil // tick fires only on change
	}

	if _, err := w.dbBreaker.Execute(func() (any, error) {
		return nil, w.repos.AuctionResults.Insert(ctx, result)
	}); err != nil {
		w.metrics.CycleErrors.WithLabelValues("insert_auction_result").Inc()
		w.log.Error().Err(err).Str("listing_id", listing.ListingID).Msg("failed to persist auction result")
	}

	w.metrics.ListingsPriced.Inc()
	snapshot := w.buildSnapshot(result, listing.CurrentPriceUSDC)

	if _, err := w.dbBreaker.Execute(func() (any, error) {
		return nil, w.repos.Snapshots.Insert(ctx, snapshot)
	}); err != nil {
		return fmt.Errorf("persist snapshot: %w", err)
	}

	if _, err := w.dbBreaker.Execute(func() (any, error) {
		return nil, w.repos.Listings.UpdatePrice(ctx, listing.ListingID, result.Price)
	}); err != nil {
		return fmt.Errorf("update stored price: %w", err)
	}

	tick := w.buildTick(listing, result)
	historyEntry := types.HistoryEntry{
		Price:       result.Price,
		Floor:       result.FloorPrice,
		Multipliers: result.Multipliers,
		Demand:      types.HistoryDemand{Score: demandState.Score, Velocity: demandState.Velocity},
		Timestamp:   result.ComputedAt.UnixMilli(),
	}

	if _, err := w.pubBreaker.Execute(func() (any, error) {
		return nil, w.pub.PublishTick(ctx, tick, historyEntry)
	}); err != nil {
		w.metrics.CycleErrors.WithLabelValues("publish_tick").Inc()
		return fmt.Errorf("publish tick: %w", err)
	}
	w.metrics.TicksPublished.Inc()

	changePct := 0.0
	if listing.CurrentPriceUSDC > 0 {
		changePct = 100 * (result.Price - listing.CurrentPriceUSDC) / listing.CurrentPriceUSDC
	}
	w.metrics.PriceChangePct.Observe(absf(changePct))

	return nil
}

func (w *Worker) qualityFor(ctx context.Context, listingID string) (types.QualityMetrics, error) {
	result, err := w.dbBreaker.Execute(func() (any, error) {
		metrics, ok, err := w.repos.QualityRollups.Latest(ctx, listingID)
		return qualityLookup{metrics, ok}, err
	})
	if err != nil {
		return types.QualityMetrics{}, err
	}
	lookup := result.(qualityLookup)
	if !lookup.ok {
		return types.DefaultQualityMetrics(), nil
	}
	return lookup.metrics, nil
}

type qualityLookup struct {
	metrics types.QualityMetrics
	ok      bool
}

// buildSnapshot constructs the durable history record, tracking
// consecutive at-floor/at-ceiling windows per listing.
func (w *Worker) buildSnapshot(result types.AuctionResult, previousPrice float64) types.PriceSnapshot {
	changePct := 0.0
	if previousPrice > 0 {
		changePct = round2(100 * (result.Price - previousPrice) / previousPrice)
	}

	w.boundsMu.Lock()
	if result.Price <= result.FloorPrice {
		w.atFloor[result.ListingID]++
	} else {
		w.atFloor[result.ListingID] = 0
	}
	if result.Inputs.CeilingPrice != nil && result.Price >= *result.Inputs.CeilingPrice {
		w.atCeil[result.ListingID]++
	} else {
		w.atCeil[result.ListingID] = 0
	}
	windowsAtFloor := w.atFloor[result.ListingID]
	windowsAtCeiling := w.atCeil[result.ListingID]
	w.boundsMu.Unlock()

	return types.PriceSnapshot{
		AuctionResult:    result,
		PreviousPrice:    previousPrice,
		PriceChangePct:   changePct,
		WindowsAtFloor:   windowsAtFloor,
		WindowsAtCeiling: windowsAtCeiling,
	}
}

func (w *Worker) buildTick(listing types.Listing, result types.AuctionResult) types.PriceTick {
	previous := listing.CurrentPriceUSDC
	changePct := 0.0
	direction := types.DirectionFlat
	if previous > 0 {
		changePct = round2(100 * (result.Price - previous) / previous)
	}
	switch {
	case result.Price > previous:
		direction = types.DirectionUp
	case result.Price < previous:
		direction = types.DirectionDown
	}

	return types.PriceTick{
		Slug:           listing.Slug,
		Name:           listing.Name,
		ListingID:      listing.ListingID,
		CurrentPrice:   result.Price,
		PreviousPrice:  previous,
		ChangePercent:  changePct,
		Direction:      direction,
		Timestamp:      result.ComputedAt,
		Multipliers:    result.Multipliers,
		DemandScore:    result.Inputs.Demand.Score,
		DemandVelocity: result.Inputs.Demand.Velocity,
	}
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
