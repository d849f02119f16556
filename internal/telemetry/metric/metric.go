// Package metric provides Prometheus metrics for Lattice.
//
// Counters are updated from the event-loop goroutine; the collectors are
// internally synchronized, so scraping from the metrics endpoint never
// touches loop-owned state.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's instruments. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	reg *prometheus.Registry

	connectionsAccepted prometheus.Counter
	connectionsActive   prometheus.Gauge
	commandsTotal       *prometheus.CounterVec
	keysExpired         prometheus.Counter
	idleReaped          prometheus.Counter
	oversizeResponses   prometheus.Counter
	keyspaceSize        prometheus.Gauge
}

// New creates and registers the engine metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		reg: reg,
		connectionsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lattice_connections_accepted_total",
			Help: "Connections accepted by the listener.",
		}),
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lattice_connections_active",
			Help: "Currently open connections.",
		}),
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lattice_commands_total",
			Help: "Commands executed, by verb.",
		}, []string{"command"}),
		keysExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lattice_keys_expired_total",
			Help: "Entries removed by TTL expiration.",
		}),
		idleReaped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lattice_connections_idle_reaped_total",
			Help: "Connections closed by the idle timeout.",
		}),
		oversizeResponses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lattice_responses_oversize_total",
			Help: "Responses that exceeded the outgoing bound.",
		}),
		keyspaceSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lattice_keyspace_entries",
			Help: "Entries currently in the keyspace.",
		}),
	}

	reg.MustRegister(
		m.connectionsAccepted,
		m.connectionsActive,
		m.commandsTotal,
		m.keysExpired,
		m.idleReaped,
		m.oversizeResponses,
		m.keyspaceSize,
	)
	return m
}

// Handler returns the scrape handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// ConnOpened records an accepted connection.
func (m *Metrics) ConnOpened() {
	if m == nil {
		return
	}
	m.connectionsAccepted.Inc()
	m.connectionsActive.Inc()
}

// ConnClosed records a closed connection.
func (m *Metrics) ConnClosed() {
	if m == nil {
		return
	}
	m.connectionsActive.Dec()
}

// Command records one executed command.
func (m *Metrics) Command(name string) {
	if m == nil {
		return
	}
	m.commandsTotal.WithLabelValues(name).Inc()
}

// Expired records one TTL expiration.
func (m *Metrics) Expired() {
	if m == nil {
		return
	}
	m.keysExpired.Inc()
}

// IdleClosed records one idle-timeout reap.
func (m *Metrics) IdleClosed() {
	if m == nil {
		return
	}
	m.idleReaped.Inc()
}

// Oversize records a response that exceeded the outgoing bound.
func (m *Metrics) Oversize() {
	if m == nil {
		return
	}
	m.oversizeResponses.Inc()
}

// SetKeys records the keyspace size.
func (m *Metrics) SetKeys(n int) {
	if m == nil {
		return
	}
	m.keyspaceSize.Set(float64(n))
}
