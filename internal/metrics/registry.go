// Package metrics exposes the pricing core's Prometheus instrumentation:
// cycle duration, per-listing price-change magnitude, publish counts,
// and breaker trips.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every Prometheus metric the Price Updater reports.
type Registry struct {
	reg *prometheus.Registry

	CycleDuration  *prometheus.HistogramVec
	ListingsPriced prometheus.Counter
	TicksPublished prometheus.Counter
	PriceChangePct prometheus.Histogram
	CycleErrors    *prometheus.CounterVec
	BreakerTrips   *prometheus.CounterVec
	ActiveListings prometheus.Gauge
	CyclesSkipped  prometheus.Counter
}

// NewRegistry builds every metric against its own prometheus.Registry
// (rather than the global DefaultRegisterer), so constructing more than
// one Registry in the same process — as tests do — never panics on a
// duplicate collector registration.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		CycleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nexusx_pricing_cycle_duration_seconds",
				Help:    "Duration of a full Price Updater cycle",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"result"},
		),
		ListingsPriced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nexusx_listings_priced_total",
			Help: "Total number of listings repriced across all cycles",
		}),
		TicksPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nexusx_price_ticks_published_total",
			Help: "Total number of PriceTick messages published to pub/sub",
		}),
		PriceChangePct: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "nexusx_price_change_percent",
			Help:    "Distribution of per-tick price change percentages",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 15, 20, 30, 50},
		}),
		CycleErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexusx_cycle_errors_total",
				Help: "Total number of per-listing errors encountered during a cycle",
			},
			[]string{"stage"},
		),
		BreakerTrips: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nexusx_breaker_trips_total",
				Help: "Total number of times a circuit breaker opened",
			},
			[]string{"breaker"},
		),
		ActiveListings: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nexusx_active_listings",
			Help: "Number of ACTIVE listings considered in the last cycle",
		}),
		CyclesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nexusx_cycles_skipped_total",
			Help: "Total number of cycles skipped because the previous cycle was still running",
		}),
	}

	r.reg.MustRegister(
		r.CycleDuration, r.ListingsPriced, r.TicksPublished, r.PriceChangePct,
		r.CycleErrors, r.BreakerTrips, r.ActiveListings, r.CyclesSkipped,
	)

	return r
}

// Handler returns the HTTP handler serving /metrics for this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// RecordBreakerTrip increments BreakerTrips for the named breaker. Wired
// as the OnStateChange hook passed to breakers.New.
func (r *Registry) RecordBreakerTrip(name string) {
	r.BreakerTrips.WithLabelValues(name).Inc()
}

// CycleTimer tracks one Price Updater cycle's wall time.
type CycleTimer struct {
	registry *Registry
	start    time.Time
}

// StartCycle begins timing a pricing cycle.
func (r *Registry) StartCycle() *CycleTimer {
	return &CycleTimer{registry: r, start: time.Now()}
}

// Stop completes the cycle timing, recording its duration under the
// given result label ("ok" or "error").
func (c *CycleTimer) Stop(result string) {
	c.registry.CycleDuration.WithLabelValues(result).Observe(time.Since(c.start).Seconds())
}
