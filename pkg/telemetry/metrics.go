package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Draft abandonment reasons.
const (
	ReasonClosed     = "closed"
	ReasonTimeout    = "timeout"
	ReasonSuperseded = "superseded"
)

// MetricsConfig configures the Prometheus collectors.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "chatstream").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for frame sizes.
	// Default: 64B to 1MB in powers of four.
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus collectors.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the frame size histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "chatstream",
		Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the Prometheus collectors for one process.
// All methods are safe on a nil receiver.
type Metrics struct {
	framesReceived  prometheus.Counter
	frameSize       prometheus.Histogram
	decodeErrors    prometheus.Counter
	eventsTotal     *prometheus.CounterVec
	violations      *prometheus.CounterVec
	unrecognized    prometheus.Counter
	draftsAbandoned *prometheus.CounterVec
	transportErrors prometheus.Counter
	submits         *prometheus.CounterVec
	connected       prometheus.Gauge
}

// NewMetrics creates and registers the collectors.
// Registering twice on the same registry panics, as with promauto.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		})
	}
	counterVec := func(name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		}, labels)
	}

	return &Metrics{
		framesReceived: counter("frames_received_total", "Total inbound frames"),
		frameSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "frame_size_bytes",
			Help:        "Inbound frame size in bytes",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),
		decodeErrors:    counter("decode_errors_total", "Total frames dropped as malformed"),
		eventsTotal:     counterVec("events_total", "Total events applied to the conversation", "kind"),
		violations:      counterVec("protocol_violations_total", "Total events refused in the current state", "kind"),
		unrecognized:    counter("unrecognized_events_total", "Total events with an unknown type tag"),
		draftsAbandoned: counterVec("drafts_abandoned_total", "Total drafts dropped without being finalized", "reason"),
		transportErrors: counter("transport_errors_total", "Total connection-level failures"),
		submits:         counterVec("submits_total", "Total user submissions", "status"),
		connected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "connected",
			Help:        "1 while the assistant connection is open",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// RecordFrame records one inbound frame of n bytes.
func (m *Metrics) RecordFrame(n int) {
	if m == nil {
		return
	}
	m.framesReceived.Inc()
	m.frameSize.Observe(float64(n))
}

// RecordDecodeError records a dropped frame.
func (m *Metrics) RecordDecodeError() {
	if m == nil {
		return
	}
	m.decodeErrors.Inc()
}

// RecordEvent records an applied event.
func (m *Metrics) RecordEvent(kind string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(kind).Inc()
}

// RecordViolation records a protocol violation.
func (m *Metrics) RecordViolation(kind string) {
	if m == nil {
		return
	}
	m.violations.WithLabelValues(kind).Inc()
}

// RecordUnrecognized records an event with an unknown type tag.
func (m *Metrics) RecordUnrecognized() {
	if m == nil {
		return
	}
	m.unrecognized.Inc()
}

// RecordDraftAbandoned records a draft dropped for reason.
func (m *Metrics) RecordDraftAbandoned(reason string) {
	if m == nil {
		return
	}
	m.draftsAbandoned.WithLabelValues(reason).Inc()
}

// RecordTransportError records a connection-level failure.
func (m *Metrics) RecordTransportError() {
	if m == nil {
		return
	}
	m.transportErrors.Inc()
}

// RecordSubmit records a submission with status "sent" or "rejected".
func (m *Metrics) RecordSubmit(status string) {
	if m == nil {
		return
	}
	m.submits.WithLabelValues(status).Inc()
}

// SetConnected updates the connection gauge.
func (m *Metrics) SetConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.connected.Set(1)
	} else {
		m.connected.Set(0)
	}
}
