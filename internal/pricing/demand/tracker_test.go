package demand

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/force23airr/NexusX-sub001/internal/pricing/types"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time          { return f.now }
func (f *fakeClock) advance(d time.Duration) { f.now = f.now.Add(d) }

func newFakeClock(start time.Time) *fakeClock { return &fakeClock{now: start} }

func TestIngestSignal_UnknownKindContributesZero(t *testing.T) {
	clock := newFakeClock(time.Unix(0, 0))
	tr := New(300000, nil, clock)

	tr.IngestSignal(types.DemandSignal{ListingID: "L1", Type: "BOGUS", Weight: 5})
	state := tr.ComputeDemandState("L1")
	assert.Equal(t, 0.0, state.RawSignalSum)
	assert.Equal(t, 0.0, state.Score)
}

func TestIngestSignal_NegativeWeightZeroed(t *testing.T) {
	clock := newFakeClock(time.Unix(0, 0))
	tr := New(300000, nil, clock)

	tr.IngestSignal(types.DemandSignal{ListingID: "L1", Type: types.SignalAPICall, Weight: -5})
	state := tr.ComputeDemandState("L1")
	assert.Equal(t, 0.0, state.RawSignalSum)
}

func TestIngestSignal_UnsubscriptionIsLegitimatelyNegative(t *testing.T) {
	clock := newFakeClock(time.Unix(0, 0))
	tr := New(300000, nil, clock)

	tr.IngestSignal(types.DemandSignal{ListingID: "L1", Type: types.SignalAPICall, Weight: 10})
	tr.IngestSignal(types.DemandSignal{ListingID: "L1", Type: types.SignalUnsubscribe, Weight: 1})
	state := tr.ComputeDemandState("L1")
	// API_CALL weight 1.0*10 + UNSUBSCRIPTION weight -1.5*1 = 8.5
	assert.InDelta(t, 8.5, state.RawSignalSum, 0.0001)
}

func TestComputeDemandState_UnknownListingIsEmpty(t *testing.T) {
	clock := newFakeClock(time.Unix(0, 0))
	tr := New(300000, nil, clock)

	state := tr.ComputeDemandState("never-seen")
	assert.Equal(t, 0.0, state.Score)
	assert.Equal(t, 0.0, state.Velocity)
}

func TestVelocity_RequiresTwoWindows(t *testing.T) {
	clock := newFakeClock(time.Unix(0, 0))
	tr := New(1000, nil, clock)

	tr.IngestSignal(types.DemandSignal{ListingID: "L1", Type: types.SignalAPICall, Weight: 10})
	state := tr.ComputeDemandState("L1")
	assert.Equal(t, 0.0, state.Velocity)
}

// S6 — window rotation and velocity: ingest 10 signals/window for 3
// windows, then 50/window for 3 more windows; on the 7th compute,
// velocity must be strictly positive (>0.5).
func TestWindowRotationAndVelocity_S6(t *testing.T) {
	clock := newFakeClock(time.Unix(0, 0))
	tr := New(1000, nil, clock)

	ingestWindow := func(count int) {
		for i := 0; i < count; i++ {
			tr.IngestSignal(types.DemandSignal{ListingID: "L1", Type: types.SignalAPICall, Weight: 1})
		}
		clock.now = clock.now.Add(1100 * time.Millisecond)
	}

	for i := 0; i < 3; i++ {
		ingestWindow(10)
	}
	for i := 0; i < 3; i++ {
		ingestWindow(50)
	}

	state := tr.ComputeDemandState("L1")
	require.Greater(t, state.Velocity, 0.5)
}

func TestGetLastState_NoRotationSideEffect(t *testing.T) {
	clock := newFakeClock(time.Unix(0, 0))
	tr := New(1000, nil, clock)

	tr.IngestSignal(types.DemandSignal{ListingID: "L1", Type: types.SignalAPICall, Weight: 5})
	_, ok := tr.GetLastState("L1")
	assert.False(t, ok, "no compute has happened yet")

	tr.ComputeDemandState("L1")
	state, ok := tr.GetLastState("L1")
	assert.True(t, ok)
	assert.Equal(t, 5.0, state.RawSignalSum)
}

func TestRemoveListing_DropsTracker(t *testing.T) {
	clock := newFakeClock(time.Unix(0, 0))
	tr := New(1000, nil, clock)

	tr.IngestSignal(types.DemandSignal{ListingID: "L1", Type: types.SignalAPICall, Weight: 5})
	tr.RemoveListing("L1")

	stats := tr.GetStats()
	assert.Equal(t, 0, stats.TrackedListings)
}

func TestUpdatePercentiles_AffectsNextScore(t *testing.T) {
	clock := newFakeClock(time.Unix(0, 0))
	tr := New(1000, nil, clock)

	tr.IngestSignal(types.DemandSignal{ListingID: "L1", Type: types.SignalAPICall, Weight: 5})
	before := tr.ComputeDemandState("L1").Score

	tr.UpdatePercentiles(types.PercentileThresholds{P10: 1})
	after := tr.ComputeDemandState("L1").Score

	assert.NotEqual(t, before, after)
}

func TestScoreFor_AlwaysInRange(t *testing.T) {
	th := types.DefaultPercentileThresholds()
	for _, v := range []float64{-10, 0, 1, 5, 50, 200, 1000, 5000} {
		s := scoreFor(v, th)
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 100.0)
	}
}
