// Package metrics exposes Prometheus counters for device-list and session
// coordination.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "omemo"

// Metrics groups the coordinator's counters. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	DeviceListUpdates *prometheus.CounterVec
	SessionsStarted   prometheus.Counter
	BundleRejections  prometheus.Counter
	BundlePublishes   prometheus.Counter
	FetchTimeouts     *prometheus.CounterVec
	JobPanics         prometheus.Counter
}

// New creates the counters and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DeviceListUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_list_updates_total",
			Help:      "Device-list inputs by synchronizer outcome.",
		}, []string{"outcome"}),
		SessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Sessions established from fetched bundles.",
		}),
		BundleRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bundle_rejections_total",
			Help:      "Fetched bundles rejected as invalid.",
		}),
		BundlePublishes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bundle_publishes_total",
			Help:      "Own bundles published.",
		}),
		FetchTimeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_timeouts_total",
			Help:      "Discovery fetches that hit their timeout, by node.",
		}, []string{"node"}),
		JobPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_panics_total",
			Help:      "Coordinator jobs that panicked.",
		}),
	}
	reg.MustRegister(
		m.DeviceListUpdates,
		m.SessionsStarted,
		m.BundleRejections,
		m.BundlePublishes,
		m.FetchTimeouts,
		m.JobPanics,
	)
	return m
}

// Outcome counts one synchronizer outcome.
func (m *Metrics) Outcome(outcome string) {
	if m == nil {
		return
	}
	m.DeviceListUpdates.WithLabelValues(outcome).Inc()
}

// SessionStarted counts a new session.
func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.SessionsStarted.Inc()
}

// BundleRejected counts an invalid bundle.
func (m *Metrics) BundleRejected() {
	if m == nil {
		return
	}
	m.BundleRejections.Inc()
}

// BundlePublished counts a bundle publication.
func (m *Metrics) BundlePublished() {
	if m == nil {
		return
	}
	m.BundlePublishes.Inc()
}

// FetchTimedOut counts a fetch timeout on node.
func (m *Metrics) FetchTimedOut(node string) {
	if m == nil {
		return
	}
	m.FetchTimeouts.WithLabelValues(node).Inc()
}

// Panicked counts a recovered job panic.
func (m *Metrics) Panicked() {
	if m == nil {
		return
	}
	m.JobPanics.Inc()
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
