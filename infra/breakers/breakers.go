// Package breakers wraps sony/gobreaker around the Price Updater's I/O
// calls (Postgres writes, Redis publishes), so a degraded dependency
// trips open and fails fast instead of stalling the whole pricing
// cycle.
package breakers

import (
	"time"

	cb "github.com/sony/gobreaker"
)

// Breaker guards a single named dependency.
type Breaker struct{ cb *cb.CircuitBreaker }

// New creates a breaker that trips after 3 consecutive failures, or
// after a 5% failure rate over at least 20 requests in the rolling
// interval. onTrip, if given, is called with the breaker's name every
// time it transitions into the open state; callers wire it to a metrics
// counter (see metrics.Registry.RecordBreakerTrip).
func New(name string, onTrip ...func(name string)) *Breaker {
	st := cb.Settings{Name: name}
	st.Interval = 60 * time.Second
	st.Timeout = 30 * time.Second
	st.ReadyToTrip = func(counts cb.Counts) bool {
		if counts.ConsecutiveFailures >= 3 {
			return true
		}
		total := counts.Requests
		if total < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(total) > 0.05
	}
	if len(onTrip) > 0 {
		hook := onTrip[0]
		st.OnStateChange = func(name string, from, to cb.State) {
			if to == cb.StateOpen {
				hook(name)
			}
		}
	}
	return &Breaker{cb: cb.NewCircuitBreaker(st)}
}

// Execute runs fn through the breaker.
func (b *Breaker) Execute(fn func() (any, error)) (any, error) { return b.cb.Execute(fn) }

// State reports the breaker's current state, for health/metrics
// surfaces.
func (b *Breaker) State() cb.State { return b.cb.State() }
