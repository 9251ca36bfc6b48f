// Package metrics provides Prometheus metrics for a hopcore node.
package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "hopcore"

// Metrics contains every Prometheus metric a node exposes.
type Metrics struct {
	// Hop relaying
	HopsRelayed        prometheus.Counter
	HopsTerminated     *prometheus.CounterVec // by component
	BootstrapRejections prometheus.Counter
	SelfAddressedDrops prometheus.Counter

	// Onion codec
	DecryptFailures   prometheus.Counter
	DeserializeFailures prometheus.Counter
	EncodeFailures    prometheus.Counter

	// Discriminator/framer
	FramesClassified *prometheus.CounterVec // by masquerader name
	FramesDropped    prometheus.Counter

	// Transport
	ConnectionsAccepted prometheus.Counter
	ConnectionsActive   prometheus.Gauge
	DialFailures        prometheus.Counter
	MailboxRejections   *prometheus.CounterVec // by actor name

	bytesRelayedCounter prometheus.Counter
	bytesRelayed        atomic.Uint64
}

// RecordBytesRelayed adds n to the running relayed-payload byte count,
// both in the Prometheus counter and in a locally readable total (for
// the status endpoint, which has no Prometheus scraper of its own).
func (m *Metrics) RecordBytesRelayed(n int) {
	m.bytesRelayedCounter.Add(float64(n))
	m.bytesRelayed.Add(uint64(n))
}

// BytesRelayed returns the running relayed-payload byte count.
func (m *Metrics) BytesRelayed() uint64 {
	return m.bytesRelayed.Load()
}

var (
	defaultMetrics *Metrics
	once           sync.Once
)

// Default returns the process-wide metrics instance, registered
// against prometheus.DefaultRegisterer on first use.
func Default() *Metrics {
	once.Do(func() {
		defaultMetrics = NewMetrics()
	})
	return defaultMetrics
}

// NewMetrics registers a fresh set of metrics against the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry registers a fresh set of metrics against reg,
// useful for tests that want an isolated registry.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HopsRelayed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hops_relayed_total",
			Help:      "Total number of Hopper-component hops relayed onward",
		}),
		HopsTerminated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hops_terminated_total",
			Help:      "Total number of hops terminated locally, by component",
		}, []string{"component"}),
		BootstrapRejections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bootstrap_rejections_total",
			Help:      "Total number of routing requests rejected by bootstrap admission policy",
		}),
		SelfAddressedDrops: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "self_addressed_drops_total",
			Help:      "Total number of Hopper hops dropped for addressing this node's own key",
		}),

		DecryptFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decrypt_failures_total",
			Help:      "Total number of CORES package decrypt failures",
		}),
		DeserializeFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deserialize_failures_total",
			Help:      "Total number of CORES package deserialize failures",
		}),
		EncodeFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "encode_failures_total",
			Help:      "Total number of outbound package encode/encrypt failures",
		}),

		FramesClassified: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_classified_total",
			Help:      "Total number of frames matched by a masquerader, by masquerader name",
		}, []string{"masquerader"}),
		FramesDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Total number of frames matched by no masquerader and dropped",
		}),

		ConnectionsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_accepted_total",
			Help:      "Total number of inbound TCP connections accepted",
		}),
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of currently tracked connections (inbound and outbound)",
		}),
		DialFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dial_failures_total",
			Help:      "Total number of outbound dial attempts that failed",
		}),
		MailboxRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mailbox_rejections_total",
			Help:      "Total number of messages rejected by a saturated actor mailbox, by actor",
		}, []string{"actor"}),

		bytesRelayedCounter: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_relayed_total",
			Help:      "Total number of CORES package payload bytes relayed onward",
		}),
	}
}
