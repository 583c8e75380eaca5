// Package quality implements the composite quality score: a pure,
// stateless mapping from raw provider telemetry to QualityMetrics.
package quality

import (
	"math"

	"github.com/force23airr/NexusX-sub001/internal/pricing/types"
)

// dimension weights; must sum to 1.0.
const (
	weightUptime        = 0.30
	weightMedianLatency = 0.20
	weightErrorRate     = 0.20
	weightRating        = 0.20
	weightP99Latency    = 0.10
)

// latency benchmark bands, in milliseconds, for the median-latency curve.
// P99 uses the same shape scaled by 3x.
const (
	latencyExcellentMs  = 50.0
	latencyGoodMs       = 200.0
	latencyAcceptableMs = 500.0
	latencyPoorMs       = 1000.0
)

// Score computes the QualityMetrics for one provider from raw telemetry.
// It is total: no input can make it return NaN/Inf, and it never errors.
func Score(raw types.RawProviderMetrics) types.QualityMetrics {
	uptimePercent := uptimePercentOf(raw)
	errorRatePercent := errorRatePercentOf(raw)

	uptimeScore := uptimeScoreOf(uptimePercent)
	medianScore := latencyScoreOf(raw.MedianLatencyMs, 1)
	p99Score := latencyScoreOf(raw.P99LatencyMs, 3)
	errorScore := errorRateScoreOf(errorRatePercent)
	ratingScore := ratingScoreOf(raw.AverageRating, raw.RatingCount)

	composite := weightUptime*uptimeScore +
		weightMedianLatency*medianScore +
		weightErrorRate*errorScore +
		weightRating*ratingScore +
		weightP99Latency*p99Score

	composite = clamp(composite, 0, 100)

	return types.QualityMetrics{
		UptimePercent:    uptimePercent,
		MedianLatencyMs:  raw.MedianLatencyMs,
		P99LatencyMs:     raw.P99LatencyMs,
		ErrorRatePercent: errorRatePercent,
		AverageRating:    raw.AverageRating,
		RatingCount:      raw.RatingCount,
		CompositeScore:   math.Round(composite),
	}
}

func uptimePercentOf(raw types.RawProviderMetrics) float64 {
	if raw.TotalMinutes <= 0 {
		return 0
	}
	return clamp(100*raw.UptimeMinutes/raw.TotalMinutes, 0, 100)
}

func errorRatePercentOf(raw types.RawProviderMetrics) float64 {
	denom := raw.SuccessCount + raw.FailureCount
	if denom <= 0 {
		return 0
	}
	return clamp(100*float64(raw.FailureCount)/float64(denom), 0, 100)
}

// uptimeScoreOf maps uptime percent to [0,100] via a stepped table.
func uptimeScoreOf(uptimePercent float64) float64 {
	switch {
	case uptimePercent >= 99.99:
		return 100
	case uptimePercent >= 99.95:
		return 97
	case uptimePercent >= 99.9:
		return 95
	case uptimePercent >= 99.5:
		return 80
	case uptimePercent >= 99.0:
		return 60
	case uptimePercent >= 98.0:
		return 30
	case uptimePercent >= 95.0:
		return 10
	default:
		return 0
	}
}

// latencyScoreOf maps a latency (ms) to [0,100] using the standard
// benchmark bands scaled by scale (1 for median, 3 for p99).
func latencyScoreOf(latencyMs float64, scale float64) float64 {
	excellent := latencyExcellentMs * scale
	good := latencyGoodMs * scale
	acceptable := latencyAcceptableMs * scale
	poor := latencyPoorMs * scale

	switch {
	case latencyMs <= excellent:
		return 100
	case latencyMs <= good:
		return lerp(100, 70, fraction(latencyMs, excellent, good))
	case latencyMs <= acceptable:
		return lerp(70, 40, fraction(latencyMs, good, acceptable))
	case latencyMs <= poor:
		return lerp(40, 10, fraction(latencyMs, acceptable, poor))
	default:
		return 0
	}
}

// errorRateScoreOf maps error rate percent to [0,100] via a stepped
// table.
func errorRateScoreOf(errorRatePercent float64) float64 {
	switch {
	case errorRatePercent <= 0:
		return 100
	case errorRatePercent < 0.1:
		return 95
	case errorRatePercent < 0.5:
		return 80
	case errorRatePercent < 1:
		return 60
	case errorRatePercent < 2:
		return 40
	case errorRatePercent < 5:
		return 20
	default:
		return 0
	}
}

// ratingScoreOf applies Bayesian shrinkage toward a neutral 3.5 prior
// before mapping the rating from [1,5] to [0,100].
func ratingScoreOf(rating float64, count int64) float64 {
	conf := math.Min(1, math.Sqrt(float64(count))/math.Sqrt(50))
	adjusted := rating*conf + 3.5*(1-conf)
	normalized := (adjusted - 1) / 4 // [1,5] -> [0,1]
	return clamp(normalized*100, 0, 100)
}

func fraction(v, lo, hi float64) float64 {
	if hi == lo {
		return 0
	}
	f := (v - lo) / (hi - lo)
	return clamp(f, 0, 1)
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
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
