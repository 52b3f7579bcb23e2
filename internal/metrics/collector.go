// Package metrics exposes the relay's Prometheus instrumentation.
//
// Grounded on dantte-lp-gobfd's internal/metrics/collector.go: a Collector
// struct of exported metric fields, a constructor that registers them
// against a caller-supplied prometheus.Registerer (falling back to the
// default one), and a namespace/subsystem prefix.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	namespace = "physync"
	subsystem = "relay"
)

const labelReason = "reason"

// Collector holds every Prometheus metric the relay updates.
type Collector struct {
	// ActiveConnections is the number of entries currently in the
	// connection table, regardless of handshake state.
	ActiveConnections prometheus.Gauge

	// HandshakesCompleted counts transitions into the Connected state.
	HandshakesCompleted prometheus.Counter

	// PacketsRelayed counts Data packets forwarded to another peer.
	PacketsRelayed prometheus.Counter

	// ConnectionsEvicted counts connection table removals, labeled with why:
	// "idle_timeout" or "disconnected".
	ConnectionsEvicted *prometheus.CounterVec

	// ProtocolMismatches counts inbound packets rejected for carrying a
	// protocol fingerprint that doesn't match this build's, or otherwise
	// failing to decode.
	ProtocolMismatches prometheus.Counter
}

// NewCollector builds a Collector and registers its metrics against reg. A
// nil reg registers against prometheus.DefaultRegisterer.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.ActiveConnections,
		c.HandshakesCompleted,
		c.PacketsRelayed,
		c.ConnectionsEvicted,
		c.ProtocolMismatches,
	)

	return c
}

func newMetrics() *Collector {
	return &Collector{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "active_connections",
			Help:      "Number of connections currently in the relay's connection table.",
		}),
		HandshakesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "handshakes_completed_total",
			Help:      "Total handshakes that reached the Connected state.",
		}),
		PacketsRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_relayed_total",
			Help:      "Total Data packets forwarded from one peer to another.",
		}),
		ConnectionsEvicted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "connections_evicted_total",
			Help:      "Total connection table evictions, labeled by reason.",
		}, []string{labelReason}),
		ProtocolMismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "protocol_mismatches_total",
			Help:      "Total inbound packets rejected for a bad protocol fingerprint or malformed header.",
		}),
	}
}

// NewUnregisteredCollector builds a Collector without registering it,
// for use in tests that want a throwaway instance.
func NewUnregisteredCollector() *Collector {
	return newMetrics()
}
