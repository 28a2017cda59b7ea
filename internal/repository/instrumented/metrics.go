package instrumented

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "oracle_store"

type Metrics struct {
	ops       *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	allocated *prometheus.CounterVec
	events    *prometheus.GaugeVec
	nextIndex *prometheus.GaugeVec
}

// NewMetrics builds the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Event store operations by backend, operation and result.",
		}, []string{"backend", "op", "result"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Event store operation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"backend", "op"}),
		allocated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "nonce_indexes_allocated_total",
			Help:      "Nonce indexes handed out.",
		}, []string{"backend"}),
		events: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "events",
			Help:      "Stored events by attestation state, as of the last stats refresh.",
		}, []string{"backend", "state"}),
		nextIndex: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "nonce_next_index",
			Help:      "First nonce index not yet allocated.",
		}, []string{"backend"}),
	}
	for _, c := range []prometheus.Collector{m.ops, m.latency, m.allocated, m.events, m.nextIndex} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
