// Package engine implements the Pricing Engine: a pure, stateless
// composition of five multipliers into a bounded, smoothed, rate-limited
// per-call price. The engine holds only its own config; every other
// input is supplied per call, so ComputePrice is safe to invoke
// concurrently from any number of goroutines against the same config
// snapshot.
package engine

import (
	"time"

	"github.com/force23airr/NexusX-sub001/internal/config"
	"github.com/force23airr/NexusX-sub001/internal/pricing/types"
)

// Engine composes PriceMultipliers into an AuctionResult. Config is
// copy-on-update: UpdateConfig swaps the atomically-held value, and any
// in-flight ComputePrice call observes either the old or the new
// snapshot, never a torn mix.
type Engine struct {
	cfg   *configBox
	clock Clock
}

// New creates a pricing engine with the given initial config and clock.
// A nil clock defaults to RealClock.
func New(cfg config.PricingConfig, clock Clock) *Engine {
	if clock == nil {
		clock = RealClock{}
	}
	return &Engine{cfg: newConfigBox(cfg), clock: clock}
}

// UpdateConfig atomically replaces the held configuration.
func (e *Engine) UpdateConfig(cfg config.PricingConfig) {
	e.cfg.store(cfg)
}

// Config returns the currently held configuration snapshot.
func (e *Engine) Config() config.PricingConfig {
	return e.cfg.load()
}

// ComputePrice is the engine's core contract: floor, optional ceiling,
// demand/quality/supply state, and an optional previous price in,
// a fully-attributed AuctionResult out. The step order below is
// normative per spec.md section 4.3.
func (e *Engine) ComputePrice(input types.AuctionInputs) types.AuctionResult {
	start := time.Now()
	cfg := e.cfg.load()

	floor := input.FloorPrice
	if floor <= 0 {
		floor = 0.000001 // data-integrity fallback: never price at/below zero
	}

	multipliers := types.PriceMultipliers{
		Demand:   demandMultiplier(input.Demand.Score, cfg),
		Scarcity: scarcityMultiplier(input.Supply, cfg),
		Quality:  qualityMultiplier(input.Quality, cfg),
		Momentum: momentumMultiplier(input.Demand.Velocity, cfg),
		Temporal: temporalMultiplier(e.clock),
	}
	multipliers.Combined = round4(
		multipliers.Demand * multipliers.Scarcity * multipliers.Quality *
			multipliers.Momentum * multipliers.Temporal,
	)

	raw := floor * multipliers.Combined

	previous := input.PreviousPrice
	if previous > 0 {
		raw = lerp(previous, raw, clamp(cfg.SmoothingFactor, 0, 1))
		raw = rateLimit(raw, previous, cfg.MaxPriceChangePercent)
	}

	// Floor is sacred: restore it even if smoothing/rate-limit pushed
	// below it.
	if raw < floor {
		raw = floor
	}

	if input.CeilingPrice != nil && *input.CeilingPrice >= floor && raw > *input.CeilingPrice {
		raw = *input.CeilingPrice
	}

	price := quantize6(raw)
	// Quantization can round a sub-6-decimal floor down below itself;
	// such a price is clamped back to floor here. Nothing is logged or
	// raised when this happens.
	if price < floor {
		price = floor
	}

	return types.AuctionResult{
		ListingID:     input.ListingID,
		Price:         price,
		FloorPrice:    floor,
		Multipliers:   multipliers,
		Inputs:        input,
		ComputedAt:    start,
		ComputeTimeUs: time.Since(start).Microseconds(),
	}
}

// ComputeBatch maps ComputePrice over a slice of inputs, preserving
// order.
func (e *Engine) ComputeBatch(inputs []types.AuctionInputs) []types.AuctionResult {
	results := make([]types.AuctionResult, len(inputs))
	for i, in := range inputs {
		results[i] = e.ComputePrice(in)
	}
	return results
}

// ComputeTransactionSplit splits a price into buyer/provider/platform
// shares using the engine's configured platform fee rate, the single
// source of truth per spec.md section 9's open question about fee-rate
// drift.
func (e *Engine) ComputeTransactionSplit(price float64) types.TransactionSplit {
	cfg := e.cfg.load()
	feeRate := clamp(cfg.PlatformFeeRate, 0, 1)

	platformFee := quantize6(price * feeRate)
	providerReceives := quantize6(price - platformFee)

	return types.TransactionSplit{
		BuyerPays:        quantize6(price),
		ProviderReceives: providerReceives,
		PlatformFee:      platformFee,
		FeeRate:          feeRate,
	}
}

// SimulatePrice constructs mock inputs (no previous price, no ceiling)
// and calls ComputePrice. Used by provider-facing "what-if" tooling.
func (e *Engine) SimulatePrice(floor float64, demandScore float64, competitorCount int, qualityScore float64) (float64, types.PriceMultipliers) {
	input := types.AuctionInputs{
		FloorPrice: floor,
		Demand: types.DemandState{
			Score:    demandScore,
			Velocity: 0,
		},
		Quality: types.QualityMetrics{
			CompositeScore: qualityScore,
			AverageRating:  4.0,
			RatingCount:    0,
		},
		Supply: types.SupplyState{
			CompetitorCount: competitorCount,
			IsUnique:        competitorCount == 0,
		},
		PreviousPrice: 0,
	}
	result := e.ComputePrice(input)
	return result.Price, result.Multipliers
}

// rateLimit clamps |raw - previous| to previous * maxPct/100.
func rateLimit(raw, previous, maxPct float64) float64 {
	if maxPct <= 0 {
		return previous
	}
	maxDelta := previous * maxPct / 100
	delta := raw - previous
	if delta > maxDelta {
		return previous + maxDelta
	}
	if delta < -maxDelta {
		return previous - maxDelta
	}
	return raw
}
