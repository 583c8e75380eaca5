package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/force23airr/NexusX-sub001/internal/pricing/types"
)

func TestScore_PerfectTelemetry(t *testing.T) {
	raw := types.RawProviderMetrics{
		UptimeMinutes:   525960,
		TotalMinutes:    525960,
		MedianLatencyMs: 10,
		P99LatencyMs:    30,
		SuccessCount:    10000,
		FailureCount:    0,
		AverageRating:   5,
		RatingCount:     1000,
	}

	got := Score(raw)
	require.InDelta(t, 100, got.UptimePercent, 0.001)
	assert.InDelta(t, 0, got.ErrorRatePercent, 0.001)
	assert.InDelta(t, 100, got.CompositeScore, 0.001)
}

func TestScore_NoTraffic(t *testing.T) {
	got := Score(types.RawProviderMetrics{})
	assert.Equal(t, 0.0, got.UptimePercent)
	assert.Equal(t, 0.0, got.ErrorRatePercent)
	assert.GreaterOrEqual(t, got.CompositeScore, 0.0)
	assert.LessOrEqual(t, got.CompositeScore, 100.0)
}

func TestScore_RatingShrinksTowardNeutralWithFewRatings(t *testing.T) {
	fewRatings := Score(types.RawProviderMetrics{
		TotalMinutes: 100, UptimeMinutes: 100,
		AverageRating: 1.0, RatingCount: 1,
	})
	manyRatings := Score(types.RawProviderMetrics{
		TotalMinutes: 100, UptimeMinutes: 100,
		AverageRating: 1.0, RatingCount: 1000,
	})

	// With few ratings the score should shrink toward the 3.5 neutral
	// prior, landing higher than the fully-confident low score.
	assert.Greater(t, fewRatings.CompositeScore, manyRatings.CompositeScore)
}

func TestUptimeScoreOf_SteppedTable(t *testing.T) {
	cases := []struct {
		uptime float64
		want   float64
	}{
		{99.99, 100}, {99.95, 97}, {99.9, 95}, {99.5, 80},
		{99.0, 60}, {98.0, 30}, {95.0, 10}, {90.0, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, uptimeScoreOf(tc.uptime), "uptime=%v", tc.uptime)
	}
}

func TestLatencyScoreOf_Monotonic(t *testing.T) {
	prev := 101.0
	for _, ms := range []float64{10, 50, 100, 200, 350, 500, 750, 1000, 2000} {
		got := latencyScoreOf(ms, 1)
		assert.LessOrEqual(t, got, prev, "score should be non-increasing as latency grows")
		prev = got
	}
}

func TestErrorRateScoreOf_SteppedTable(t *testing.T) {
	assert.Equal(t, 100.0, errorRateScoreOf(0))
	assert.Equal(t, 95.0, errorRateScoreOf(0.05))
	assert.Equal(t, 80.0, errorRateScoreOf(0.3))
	assert.Equal(t, 60.0, errorRateScoreOf(0.7))
	assert.Equal(t, 40.0, errorRateScoreOf(1.5))
	assert.Equal(t, 20.0, errorRateScoreOf(3))
	assert.Equal(t, 0.0, errorRateScoreOf(10))
}
