package engine

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/force23airr/NexusX-sub001/internal/config"
	"github.com/force23airr/NexusX-sub001/internal/pricing/types"
)

func growthConfig(t *testing.T) config.PricingConfig {
	t.Helper()
	cfg, err := config.Preset("growth")
	require.NoError(t, err)
	return cfg
}

func fixedNoonClock() Clock {
	// hourUTC = 8 puts the cosine argument at -π/2, zeroing the cosine
	// term, i.e. temporal = 1.0
	return FixedClock{At: time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)}
}

func ptr(v float64) *float64 { return &v }

// S1 — Floor preserved under zero demand.
func TestS1_FloorPreservedUnderZeroDemand(t *testing.T) {
	e := New(growthConfig(t), fixedNoonClock())

	result := e.ComputePrice(types.AuctionInputs{
		FloorPrice: 0.01,
		Demand:     types.DemandState{Score: 0, Velocity: 0},
		Quality:    types.QualityMetrics{CompositeScore: 50, AverageRating: 4.0},
		Supply:     types.SupplyState{CompetitorCount: 10, UtilizationPercent: 30},
	})

	assert.GreaterOrEqual(t, result.Price, 0.01)
	assert.Less(t, result.Price, 0.02)
	assert.InDelta(t, 1.0, result.Multipliers.Demand, 0.1)
}

// S2 — Ceiling respected at max everything.
func TestS2_CeilingRespectedAtMaxEverything(t *testing.T) {
	e := New(growthConfig(t), fixedNoonClock())

	result := e.ComputePrice(types.AuctionInputs{
		FloorPrice:   0.001,
		CeilingPrice: ptr(0.005),
		Demand:       types.DemandState{Score: 100, Velocity: 20},
		Quality:      types.QualityMetrics{CompositeScore: 100, AverageRating: 4.0},
		Supply:       types.SupplyState{CompetitorCount: 0, IsUnique: true, UtilizationPercent: 100},
	})

	assert.LessOrEqual(t, result.Price, 0.005)
}

// S3 — Rate limit active.
func TestS3_RateLimitActive(t *testing.T) {
	cfg := growthConfig(t)
	cfg.MaxPriceChangePercent = 10
	e := New(cfg, fixedNoonClock())

	result := e.ComputePrice(types.AuctionInputs{
		FloorPrice:    0.001,
		Demand:        types.DemandState{Score: 100, Velocity: 20},
		Quality:       types.QualityMetrics{CompositeScore: 100, AverageRating: 5.0, RatingCount: 100},
		Supply:        types.SupplyState{CompetitorCount: 0, IsUnique: true, UtilizationPercent: 100},
		PreviousPrice: 0.01,
	})

	assert.LessOrEqual(t, result.Price, 0.011+1e-6)
}

// S4 — Excellence bonus: the marginal gain from 85->95 exceeds the gain
// from 75->85.
func TestS4_ExcellenceBonus(t *testing.T) {
	cfg := growthConfig(t)
	q := func(score float64) float64 {
		return qualityMultiplier(types.QualityMetrics{CompositeScore: score, AverageRating: 4.0, RatingCount: 100}, cfg)
	}

	gainLow := q(85) - q(75)
	gainHigh := q(95) - q(85)
	assert.Greater(t, gainHigh, gainLow)
}

// S5 — Tick fires only on change: recomputing identical inputs yields
// an identical result, so a caller diffing against the stored price
// would publish exactly once across two cycles with unchanged stored
// state.
func TestS5_IdenticalInputsYieldIdenticalResult(t *testing.T) {
	e := New(growthConfig(t), fixedNoonClock())

	input := types.AuctionInputs{
		FloorPrice: 0.02,
		Demand:     types.DemandState{Score: 60, Velocity: 2},
		Quality:    types.QualityMetrics{CompositeScore: 80, AverageRating: 4.2, RatingCount: 50},
		Supply:     types.SupplyState{CompetitorCount: 2, UtilizationPercent: 50},
	}

	first := e.ComputePrice(input)
	second := e.ComputePrice(input)
	assert.Equal(t, first.Price, second.Price)
	assert.Equal(t, first.Multipliers, second.Multipliers)
}

// S7 — Transaction split precision.
func TestS7_TransactionSplitPrecision(t *testing.T) {
	cfg := growthConfig(t)
	cfg.PlatformFeeRate = 0.12
	e := New(cfg, fixedNoonClock())

	split := e.ComputeTransactionSplit(0.000012)

	// round6(0.00000144) = 0.000001, round6(0.00001056) = 0.000011
	assert.InDelta(t, 0.000012, split.BuyerPays, 1e-9)
	assert.InDelta(t, 0.000001, split.PlatformFee, 1e-9)
	assert.InDelta(t, 0.000011, split.ProviderReceives, 1e-9)
	assert.InDelta(t, split.BuyerPays, split.ProviderReceives+split.PlatformFee, 1e-6)
}

// Invariant 1: floor/ceiling always respected.
func TestInvariant_FloorCeilingAlwaysRespected(t *testing.T) {
	e := New(growthConfig(t), fixedNoonClock())

	for _, tc := range []struct {
		floor, ceiling float64
		score          float64
		util           float64
	}{
		{0.01, 0, 0, 0},
		{0.01, 0.02, 100, 100},
		{5, 5.5, 50, 50},
		{100, 0, 0, 100},
	} {
		var ceilPtr *float64
		if tc.ceiling > 0 {
			ceilPtr = ptr(tc.ceiling)
		}
		result := e.ComputePrice(types.AuctionInputs{
			FloorPrice:   tc.floor,
			CeilingPrice: ceilPtr,
			Demand:       types.DemandState{Score: tc.score},
			Quality:      types.QualityMetrics{CompositeScore: 60, AverageRating: 4.0},
			Supply:       types.SupplyState{UtilizationPercent: tc.util},
		})
		assert.GreaterOrEqual(t, result.Price, tc.floor)
		if ceilPtr != nil {
			assert.LessOrEqual(t, result.Price, tc.ceiling)
		}
	}
}

// Invariant 2: rate limit bound.
func TestInvariant_RateLimitBound(t *testing.T) {
	cfg := growthConfig(t)
	cfg.MaxPriceChangePercent = 15
	e := New(cfg, fixedNoonClock())

	result := e.ComputePrice(types.AuctionInputs{
		FloorPrice:    0.001,
		Demand:        types.DemandState{Score: 100, Velocity: 20},
		Quality:       types.QualityMetrics{CompositeScore: 100, AverageRating: 5.0, RatingCount: 100},
		Supply:        types.SupplyState{IsUnique: true, UtilizationPercent: 100},
		PreviousPrice: 1.0,
	})

	maxDelta := 1.0 * 0.15
	assert.LessOrEqual(t, math.Abs(result.Price-1.0), maxDelta+1e-6)
}

// Invariant 3: combined multiplier is the product of the five factors.
func TestInvariant_CombinedIsProduct(t *testing.T) {
	e := New(growthConfig(t), fixedNoonClock())

	result := e.ComputePrice(types.AuctionInputs{
		FloorPrice: 1,
		Demand:     types.DemandState{Score: 73, Velocity: 3},
		Quality:    types.QualityMetrics{CompositeScore: 82, AverageRating: 4.1, RatingCount: 40},
		Supply:     types.SupplyState{CompetitorCount: 1, UtilizationPercent: 60},
	})

	m := result.Multipliers
	expected := m.Demand * m.Scarcity * m.Quality * m.Momentum * m.Temporal
	assert.InDelta(t, expected, m.Combined, 0.0001)
}

// Invariant 6: demand multiplier is monotonically non-decreasing in
// score; quality multiplier is monotonically non-decreasing in
// compositeScore (modulo the rating-penalty step).
func TestInvariant_MonotonicMultipliers(t *testing.T) {
	cfg := growthConfig(t)

	prevDemand := -1.0
	for score := 0.0; score <= 100; score += 5 {
		m := demandMultiplier(score, cfg)
		assert.GreaterOrEqual(t, m, prevDemand)
		prevDemand = m
	}

	prevQuality := -1.0
	for score := 0.0; score <= 100; score += 5 {
		m := qualityMultiplier(types.QualityMetrics{CompositeScore: score, AverageRating: 4.0, RatingCount: 100}, cfg)
		assert.GreaterOrEqual(t, m, prevQuality)
		prevQuality = m
	}
}

// Invariant 7: identical inputs + fixed clock => bit-identical output.
func TestInvariant_Deterministic(t *testing.T) {
	cfg := growthConfig(t)
	clock := fixedNoonClock()
	e1 := New(cfg, clock)
	e2 := New(cfg, clock)

	input := types.AuctionInputs{
		FloorPrice: 0.05,
		Demand:     types.DemandState{Score: 42, Velocity: -3},
		Quality:    types.QualityMetrics{CompositeScore: 55, AverageRating: 3.9, RatingCount: 10},
		Supply:     types.SupplyState{CompetitorCount: 4, UtilizationPercent: 80},
	}

	r1 := e1.ComputePrice(input)
	r2 := e2.ComputePrice(input)
	assert.Equal(t, r1.Price, r2.Price)
	assert.Equal(t, r1.Multipliers, r2.Multipliers)
}

func TestFloorMisconfiguration_FloorStillWins(t *testing.T) {
	e := New(growthConfig(t), fixedNoonClock())

	result := e.ComputePrice(types.AuctionInputs{
		FloorPrice:   10,
		CeilingPrice: ptr(5), // misconfigured: ceiling < floor
		Demand:       types.DemandState{Score: 0},
		Quality:      types.QualityMetrics{CompositeScore: 50, AverageRating: 4.0},
	})

	assert.GreaterOrEqual(t, result.Price, 10.0)
}

func TestComputeBatch_PreservesOrder(t *testing.T) {
	e := New(growthConfig(t), fixedNoonClock())

	inputs := []types.AuctionInputs{
		{ListingID: "a", FloorPrice: 1, Quality: types.QualityMetrics{CompositeScore: 50}},
		{ListingID: "b", FloorPrice: 2, Quality: types.QualityMetrics{CompositeScore: 50}},
		{ListingID: "c", FloorPrice: 3, Quality: types.QualityMetrics{CompositeScore: 50}},
	}

	results := e.ComputeBatch(inputs)
	require.Len(t, results, 3)
	assert.Equal(t, "a", results[0].ListingID)
	assert.Equal(t, "b", results[1].ListingID)
	assert.Equal(t, "c", results[2].ListingID)
}

func TestSimulatePrice_NoPreviousNoCeiling(t *testing.T) {
	e := New(growthConfig(t), fixedNoonClock())

	price, multipliers := e.SimulatePrice(0.02, 70, 2, 85)
	assert.GreaterOrEqual(t, price, 0.02)
	assert.Greater(t, multipliers.Combined, 0.0)
}

func TestUpdateConfig_AppliesToSubsequentCalls(t *testing.T) {
	e := New(growthConfig(t), fixedNoonClock())

	before := e.ComputePrice(types.AuctionInputs{
		FloorPrice: 1,
		Demand:     types.DemandState{Score: 100},
		Quality:    types.QualityMetrics{CompositeScore: 50},
	})

	cfg := e.Config()
	cfg.MaxDemandMultiplier = 10
	e.UpdateConfig(cfg)

	after := e.ComputePrice(types.AuctionInputs{
		FloorPrice: 1,
		Demand:     types.DemandState{Score: 100},
		Quality:    types.QualityMetrics{CompositeScore: 50},
	})

	assert.Greater(t, after.Price, before.Price)
}

func TestQuantize6_HalfAwayFromZero(t *testing.T) {
	assert.Equal(t, 0.000012, quantize6(0.0000115))
	assert.Equal(t, -0.000012, quantize6(-0.0000115))
}
