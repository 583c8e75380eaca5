package engine

import (
	"math"

	"github.com/force23airr/NexusX-sub001/internal/config"
	"github.com/force23airr/NexusX-sub001/internal/pricing/types"
)

// demandSigmoidK is the slope constant in the demand multiplier's
// logistic curve.
const demandSigmoidK = 0.08

// demandMultiplier maps a demand score in [0,100] to a multiplier in
// [1, maxDemand], monotonically non-decreasing in score.
func demandMultiplier(score float64, cfg config.PricingConfig) float64 {
	maxDemand := safeMax(cfg.MaxDemandMultiplier, 1)
	s := sigmoid(demandSigmoidK * (score - 50))
	m := 1 + (maxDemand-1)*s
	return round4(clamp(m, 1, maxDemand))
}

// scarcityMultiplier reflects competitor scarcity and capacity
// utilization.
func scarcityMultiplier(supply types.SupplyState, cfg config.PricingConfig) float64 {
	maxScarcity := safeMax(cfg.MaxScarcityMultiplier, 1)

	var competitorFactor float64
	switch {
	case supply.IsUnique || supply.CompetitorCount == 0:
		competitorFactor = 1.0
	case supply.CompetitorCount <= 2:
		competitorFactor = 0.6
	case supply.CompetitorCount <= 5:
		competitorFactor = 0.25
	default:
		competitorFactor = 0
	}

	var utilizationFactor float64
	if supply.UtilizationPercent > 70 {
		utilizationFactor = (supply.UtilizationPercent - 70) / 30 * 0.4
		if utilizationFactor > 0.4 {
			utilizationFactor = 0.4
		}
	}

	scarcityFactor := math.Max(competitorFactor, utilizationFactor)
	if scarcityFactor > 1 {
		scarcityFactor = 1
	}

	m := 1 + (maxScarcity-1)*scarcityFactor
	return round4(clamp(m, 1, maxScarcity))
}

// qualityMultiplier maps a composite quality score in [0,100] to a
// multiplier, with an excellence bonus above 90 and a penalty for
// poorly-but-widely-rated providers.
func qualityMultiplier(quality types.QualityMetrics, cfg config.PricingConfig) float64 {
	maxQuality := safeMax(cfg.MaxQualityMultiplier, 0.7)
	score := clamp(quality.CompositeScore, 0, 100)

	base := lerp(0.7, maxQuality, score/100)

	if score >= 90 {
		base += (score - 90) / 10 * 0.15
	}

	if quality.AverageRating < 3.0 && quality.RatingCount >= 20 {
		base *= 0.85
	}

	return round4(clamp(base, 0.7, maxQuality+0.15))
}

// momentumMultiplier reflects demand velocity: positive velocity lifts
// price toward maxMomentum, negative velocity pushes it down toward
// 1/maxMomentum.
func momentumMultiplier(velocity float64, cfg config.PricingConfig) float64 {
	maxMomentum := safeMax(cfg.MaxMomentumMultiplier, 1.000001)
	minM := 1 / maxMomentum

	switch {
	case velocity == 0:
		return 1
	case velocity > 0:
		m := 1 + (maxMomentum-1)*math.Sqrt(math.Min(velocity/20, 1))
		return round4(clamp(m, 1, maxMomentum))
	default:
		m := 1 - (1-minM)*math.Sqrt(math.Min(-velocity/20, 1))
		return round4(clamp(m, minM, 1))
	}
}

// temporalMultiplier is the one impure multiplier: it reads the clock
// for the current hour (fractional, UTC) and applies a daily cosine
// curve peaking at 14:00 UTC.
func temporalMultiplier(clock Clock) float64 {
	now := clock.Now().UTC()
	hourUTC := float64(now.Hour()) + float64(now.Minute())/60 + float64(now.Second())/3600
	m := 1 + 0.05*math.Cos(2*math.Pi*(hourUTC-14)/24)
	return round4(m)
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// safeMax guards against a zero/negative config value collapsing a
// multiplier's range to something degenerate; falls back to floor when
// the configured max doesn't exceed it.
func safeMax(configured, floor float64) float64 {
	if math.IsNaN(configured) || configured <= floor {
		return floor + 0.000001
	}
	return configured
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
