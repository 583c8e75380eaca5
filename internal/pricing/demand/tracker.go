// Package demand implements the Demand Tracker: a sliding-window signal
// aggregator with percentile-based normalization and velocity
// estimation. Its hot path (IngestSignal) never suspends and never
// throws; bad input contributes zero instead of erroring.
package demand

import (
	"math"
	"sync"
	"time"

	"github.com/force23airr/NexusX-sub001/internal/pricing/types"
)

// listingTracker holds one listing's current and historical windows. A
// tracker is never shared across two concurrent ingests: callers serialize
// on mu.
type listingTracker struct {
	mu                sync.Mutex
	listingID         string
	currentWindow     *signalWindow
	historicalWindows []*signalWindow // most recent last, capped at 12
	lastState         *types.DemandState
}

// Tracker is the Demand Tracker. It owns every listingTracker and their
// windows exclusively; nothing outside this package mutates them.
type Tracker struct {
	clock       Clock
	windowMs    int64
	kindWeights types.KindWeights

	mu       sync.Mutex // guards the trackers map itself
	trackers map[string]*listingTracker

	thresholdsMu sync.RWMutex
	thresholds   types.PercentileThresholds
}

// New creates a Demand Tracker with the given window length and clock.
func New(windowMs int64, kindWeights types.KindWeights, clock Clock) *Tracker {
	if clock == nil {
		clock = RealClock{}
	}
	if kindWeights == nil {
		kindWeights = types.DefaultKindWeights()
	}
	return &Tracker{
		clock:       clock,
		windowMs:    windowMs,
		kindWeights: kindWeights,
		trackers:    make(map[string]*listingTracker),
		thresholds:  types.DefaultPercentileThresholds(),
	}
}

// IngestSignal folds one signal into its listing's current window,
// rotating the window first if it has expired. Unknown kinds and a
// negative or NaN per-instance weight contribute 0 to weightedSum but
// still advance rawCount and the unique-buyer set. A negative kind
// weight (UNSUBSCRIPTION) is legitimate and subtracts from the sum.
func (t *Tracker) IngestSignal(signal types.DemandSignal) {
	lt := t.trackerFor(signal.ListingID)

	lt.mu.Lock()
	defer lt.mu.Unlock()

	now := t.clock.Now()
	t.rotateIfExpired(lt, now)

	kindWeight := t.kindWeights.Weight(signal.Type)
	instanceWeight := signal.Weight
	if instanceWeight < 0 || math.IsNaN(instanceWeight) {
		instanceWeight = 0
	}

	lt.currentWindow.weightedSum += kindWeight * instanceWeight
	lt.currentWindow.rawCount++
	lt.currentWindow.addBuyer(signal.BuyerID)
}

// IngestBatch is semantically equivalent to sequential IngestSignal
// calls.
func (t *Tracker) IngestBatch(signals []types.DemandSignal) {
	for _, s := range signals {
		t.IngestSignal(s)
	}
}

// ComputeDemandState rotates the window if expired, computes the score
// and velocity, stores the result as lastState, and returns it. Unknown
// listings get a fresh, empty tracker (score 0, velocity 0).
func (t *Tracker) ComputeDemandState(listingID string) types.DemandState {
	lt := t.trackerFor(listingID)

	lt.mu.Lock()
	defer lt.mu.Unlock()

	now := t.clock.Now()
	t.rotateIfExpired(lt, now)

	thresholds := t.Thresholds()
	score := scoreFor(lt.currentWindow.weightedSum, thresholds)
	velocity := velocityFor(lt.historicalWindows, thresholds)

	state := types.DemandState{
		ListingID:    listingID,
		Score:        score,
		RawSignalSum: lt.currentWindow.weightedSum,
		UniqueBuyers: lt.currentWindow.buyerCount(),
		Velocity:     velocity,
		ComputedAt:   now,
		WindowMs:     t.windowMs,
	}
	lt.lastState = &state
	return state
}

// ComputeAllDemandStates computes the state for every tracked listing.
func (t *Tracker) ComputeAllDemandStates() []types.DemandState {
	t.mu.Lock()
	ids := make([]string, 0, len(t.trackers))
	for id := range t.trackers {
		ids = append(ids, id)
	}
	t.mu.Unlock()

	states := make([]types.DemandState, 0, len(ids))
	for _, id := range ids {
		states = append(states, t.ComputeDemandState(id))
	}
	return states
}

// GetLastState is a pure read of the last computed state, with no
// rotation side effect.
func (t *Tracker) GetLastState(listingID string) (types.DemandState, bool) {
	t.mu.Lock()
	lt, ok := t.trackers[listingID]
	t.mu.Unlock()
	if !ok {
		return types.DemandState{}, false
	}

	lt.mu.Lock()
	defer lt.mu.Unlock()
	if lt.lastState == nil {
		return types.DemandState{}, false
	}
	return *lt.lastState, true
}

// UpdatePercentiles merges new thresholds; the next score computation
// uses them. Fields left at their zero value in partial keep their
// previous value.
func (t *Tracker) UpdatePercentiles(partial types.PercentileThresholds) {
	t.thresholdsMu.Lock()
	defer t.thresholdsMu.Unlock()
	if partial.P10 != 0 {
		t.thresholds.P10 = partial.P10
	}
	if partial.P50 != 0 {
		t.thresholds.P50 = partial.P50
	}
	if partial.P90 != 0 {
		t.thresholds.P90 = partial.P90
	}
	if partial.P99 != 0 {
		t.thresholds.P99 = partial.P99
	}
}

// Thresholds returns the tracker's current percentile thresholds.
func (t *Tracker) Thresholds() types.PercentileThresholds {
	t.thresholdsMu.RLock()
	defer t.thresholdsMu.RUnlock()
	return t.thresholds
}

// RemoveListing drops a listing's tracker entirely, e.g. on delisting.
func (t *Tracker) RemoveListing(listingID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.trackers, listingID)
}

// GetStats summarizes the tracker's current in-memory footprint.
func (t *Tracker) GetStats() types.DemandStats {
	t.mu.Lock()
	trackers := make([]*listingTracker, 0, len(t.trackers))
	for _, lt := range t.trackers {
		trackers = append(trackers, lt)
	}
	count := len(trackers)
	t.mu.Unlock()

	var totalSignals int64
	var totalBuyers int
	for _, lt := range trackers {
		lt.mu.Lock()
		totalSignals += lt.currentWindow.rawCount
		totalBuyers += lt.currentWindow.buyerCount()
		lt.mu.Unlock()
	}

	return types.DemandStats{
		TrackedListings:              count,
		TotalSignalsInCurrentWindows: totalSignals,
		TotalUniqueBuyers:            totalBuyers,
	}
}

// trackerFor returns the listing's tracker, creating an empty one on
// first access.
func (t *Tracker) trackerFor(listingID string) *listingTracker {
	t.mu.Lock()
	defer t.mu.Unlock()

	lt, ok := t.trackers[listingID]
	if !ok {
		lt = &listingTracker{
			listingID:     listingID,
			currentWindow: newSignalWindow(t.clock.Now()),
		}
		t.trackers[listingID] = lt
	}
	return lt
}

// rotateIfExpired closes and archives the current window if it has been
// open for windowMs or more, opening a fresh one. No back-filling:
// signals landing after rotation join the new window regardless of
// their own timestamp. Caller must hold lt.mu.
func (t *Tracker) rotateIfExpired(lt *listingTracker, now time.Time) {
	elapsed := now.Sub(lt.currentWindow.openedAt)
	if elapsed < time.Duration(t.windowMs)*time.Millisecond {
		return
	}

	lt.currentWindow.closedAt = now
	lt.historicalWindows = append(lt.historicalWindows, lt.currentWindow)
	if len(lt.historicalWindows) > maxHistoricalWindows {
		lt.historicalWindows = lt.historicalWindows[len(lt.historicalWindows)-maxHistoricalWindows:]
	}
	lt.currentWindow = newSignalWindow(now)
}

// scoreFor maps a raw weighted sum to [0,100] via piecewise-linear
// interpolation across the percentile thresholds.
func scoreFor(rawSum float64, th types.PercentileThresholds) float64 {
	switch {
	case rawSum <= 0:
		return 0
	case rawSum <= th.P10:
		return lerp(0, 10, fraction(rawSum, 0, th.P10))
	case rawSum <= th.P50:
		return lerp(10, 50, fraction(rawSum, th.P10, th.P50))
	case rawSum <= th.P90:
		return lerp(50, 90, fraction(rawSum, th.P50, th.P90))
	case rawSum <= th.P99:
		return lerp(90, 100, fraction(rawSum, th.P90, th.P99))
	default:
		return 100
	}
}

// velocityFor fits a least-squares line to the normalized scores of the
// most recent min(6, len(history)) closed windows and returns its slope,
// rounded to 2 decimals. Fewer than 2 windows, or a degenerate
// denominator, yields 0.
func velocityFor(history []*signalWindow, th types.PercentileThresholds) float64 {
	n := len(history)
	if n > 6 {
		n = 6
	}
	if n < 2 {
		return 0
	}
	recent := history[len(history)-n:]

	var sumX, sumY, sumXY, sumXX float64
	for i, w := range recent {
		x := float64(i)
		y := scoreFor(w.weightedSum, th)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	nf := float64(n)
	denom := nf*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	slope := (nf*sumXY - sumX*sumY) / denom
	return math.Round(slope*100) / 100
}

func fraction(v, lo, hi float64) float64 {
	if hi == lo {
		return 0
	}
	f := (v - lo) / (hi - lo)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
