package emulator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts emulator activity. All methods are safe on a nil receiver.
type Metrics struct {
	connections *prometheus.CounterVec
	active      prometheus.Gauge
	prompts     *prometheus.CounterVec
	timeouts    *prometheus.CounterVec
	failures    *prometheus.CounterVec
}

// NewMetrics registers the emulator collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	opts := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{
			Namespace: "chatstream",
			Subsystem: "emulator",
			Name:      name,
			Help:      help,
		}
	}
	return &Metrics{
		connections: factory.NewCounterVec(opts("connections_total", "Total accepted connections"), []string{"schema"}),
		active: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "chatstream",
			Subsystem: "emulator",
			Name:      "active_connections",
			Help:      "Currently open connections",
		}),
		prompts:  factory.NewCounterVec(opts("prompts_total", "Total prompts answered"), []string{"schema"}),
		timeouts: factory.NewCounterVec(opts("idle_timeouts_total", "Total connections closed for inactivity"), []string{"schema"}),
		failures: factory.NewCounterVec(opts("processing_errors_total", "Total prompts answered with a processing error"), []string{"schema"}),
	}
}

func (m *Metrics) connOpened(schema string) {
	if m == nil {
		return
	}
	m.connections.WithLabelValues(schema).Inc()
	m.active.Inc()
}

func (m *Metrics) connClosed() {
	if m == nil {
		return
	}
	m.active.Dec()
}

func (m *Metrics) prompt(schema string) {
	if m == nil {
		return
	}
	m.prompts.WithLabelValues(schema).Inc()
}

func (m *Metrics) timeout(schema string) {
	if m == nil {
		return
	}
	m.timeouts.WithLabelValues(schema).Inc()
}

func (m *Metrics) failure(schema string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(schema).Inc()
}
