// Package metrics exposes Prometheus collectors for the RTMP server. Every method is safe to call on a
// nil *Collector, so sessions can record unconditionally.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Options configures the collectors created by New.
type Options struct {
	// Namespace is the metrics namespace (default: "rtmp").
	Namespace string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

type Option func(*Options)

func WithNamespace(namespace string) Option {
	return func(o *Options) {
		o.Namespace = namespace
	}
}

func WithConstLabels(labels prometheus.Labels) Option {
	return func(o *Options) {
		o.ConstLabels = labels
	}
}

func WithRegistry(registry prometheus.Registerer) Option {
	return func(o *Options) {
		o.Registry = registry
	}
}

func defaultOptions() Options {
	return Options{
		Namespace: "rtmp",
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Collector holds the server's metrics.
type Collector struct {
	sessionsTotal     prometheus.Counter
	activeSessions    prometheus.Gauge
	handshakeFailures prometheus.Counter
	chunksTotal       *prometheus.CounterVec
	messagesTotal     *prometheus.CounterVec
	droppedMessages   *prometheus.CounterVec
	protocolErrors    prometheus.Counter
	bytesRead         prometheus.Counter
	bytesWritten      prometheus.Counter
}

// New registers the collectors with the configured registry. It panics if they are already registered
// there, like promauto does.
func New(opts ...Option) *Collector {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	factory := promauto.With(o.Registry)

	return &Collector{
		sessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   o.Namespace,
			Name:        "sessions_total",
			Help:        "Total number of accepted RTMP sessions",
			ConstLabels: o.ConstLabels,
		}),
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   o.Namespace,
			Name:        "active_sessions",
			Help:        "Number of RTMP sessions currently running",
			ConstLabels: o.ConstLabels,
		}),
		handshakeFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   o.Namespace,
			Name:        "handshake_failures_total",
			Help:        "Total number of handshakes that did not complete",
			ConstLabels: o.ConstLabels,
		}),
		chunksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   o.Namespace,
			Name:        "chunks_total",
			Help:        "Total number of chunks read, by chunk header format",
			ConstLabels: o.ConstLabels,
		}, []string{"fmt"}),
		messagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   o.Namespace,
			Name:        "messages_total",
			Help:        "Total number of messages dispatched, by message type",
			ConstLabels: o.ConstLabels,
		}, []string{"type"}),
		droppedMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   o.Namespace,
			Name:        "dropped_messages_total",
			Help:        "Total number of messages with an unknown type that were dropped",
			ConstLabels: o.ConstLabels,
		}, []string{"type"}),
		protocolErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   o.Namespace,
			Name:        "protocol_errors_total",
			Help:        "Total number of sessions terminated by a protocol violation",
			ConstLabels: o.ConstLabels,
		}),
		bytesRead: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   o.Namespace,
			Name:        "read_bytes_total",
			Help:        "Total number of bytes read from clients",
			ConstLabels: o.ConstLabels,
		}),
		bytesWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   o.Namespace,
			Name:        "written_bytes_total",
			Help:        "Total number of bytes written to clients",
			ConstLabels: o.ConstLabels,
		}),
	}
}

func (c *Collector) SessionStarted() {
	if c == nil {
		return
	}
	c.sessionsTotal.Inc()
	c.activeSessions.Inc()
}

func (c *Collector) SessionEnded() {
	if c == nil {
		return
	}
	c.activeSessions.Dec()
}

func (c *Collector) HandshakeFailed() {
	if c == nil {
		return
	}
	c.handshakeFailures.Inc()
}

// ChunkRead counts one chunk with the given header format (0 to 3).
func (c *Collector) ChunkRead(format uint8) {
	if c == nil {
		return
	}
	c.chunksTotal.WithLabelValues(strconv.Itoa(int(format))).Inc()
}

func (c *Collector) MessageReceived(messageType string) {
	if c == nil {
		return
	}
	c.messagesTotal.WithLabelValues(messageType).Inc()
}

func (c *Collector) MessageDropped(messageType string) {
	if c == nil {
		return
	}
	c.droppedMessages.WithLabelValues(messageType).Inc()
}

func (c *Collector) ProtocolError() {
	if c == nil {
		return
	}
	c.protocolErrors.Inc()
}

// AddBytes records traffic of a finished session.
func (c *Collector) AddBytes(read, written uint64) {
	if c == nil {
		return
	}
	c.bytesRead.Add(float64(read))
	c.bytesWritten.Add(float64(written))
}
