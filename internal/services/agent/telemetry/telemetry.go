// Package telemetry collects Prometheus metrics for the agent and exposes
// them over the scrape endpoint.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records agent-level counters. It satisfies the metrics interfaces
// of the auth and prefs packages.
type Collector struct {
	authOperations  *prometheus.CounterVec
	preferenceFlush *prometheus.CounterVec
	decodeFallbacks prometheus.Counter
	sessionChanges  prometheus.Counter
	mirrorThrottled prometheus.Counter
}

// NewCollector creates a collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authOperations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "daybreak_auth_operations_total",
			Help: "Authentication operations by method and outcome.",
		}, []string{"method", "outcome"}),
		preferenceFlush: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "daybreak_preference_flushes_total",
			Help: "Debounced preference writes by outcome.",
		}, []string{"outcome"}),
		decodeFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "daybreak_preference_decode_fallbacks_total",
			Help: "Stored preference documents replaced with defaults after a decode failure.",
		}),
		sessionChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "daybreak_session_changes_total",
			Help: "Identity-changed notifications applied to the session store.",
		}),
		mirrorThrottled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "daybreak_mirror_throttled_total",
			Help: "Remote preference mirror upserts skipped by the rate limiter.",
		}),
	}

	reg.MustRegister(
		c.authOperations,
		c.preferenceFlush,
		c.decodeFallbacks,
		c.sessionChanges,
		c.mirrorThrottled,
	)

	return c
}

// RecordAuthOperation counts one finished authentication operation.
func (c *Collector) RecordAuthOperation(method string, outcome string) {
	c.authOperations.WithLabelValues(method, outcome).Inc()
}

// RecordPreferenceFlush counts one debounced preference write.
func (c *Collector) RecordPreferenceFlush(outcome string) {
	c.preferenceFlush.WithLabelValues(outcome).Inc()
}

// RecordDecodeFallback counts one defaults fallback after a decode failure.
func (c *Collector) RecordDecodeFallback() {
	c.decodeFallbacks.Inc()
}

// RecordSessionChange counts one applied identity-changed notification.
func (c *Collector) RecordSessionChange() {
	c.sessionChanges.Inc()
}

// RecordMirrorThrottled counts one mirror upsert skipped by throttling.
func (c *Collector) RecordMirrorThrottled() {
	c.mirrorThrottled.Inc()
}

// Handler returns the Prometheus scrape handler for the given gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
