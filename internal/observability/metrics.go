package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jonathan/content-studio/internal/types"
)

// Metrics holds the generation counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	runsStarted     prometheus.Counter
	runsFinished    *prometheus.CounterVec
	malformedLines  prometheus.Counter
	transportErrors prometheus.Counter
	activeStreams   prometheus.Gauge
}

// NewMetrics creates the generation metrics and registers them with reg.
// A nil registerer leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "studio",
			Name:      "runs_started_total",
			Help:      "Generation runs started.",
		}),
		runsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studio",
			Name:      "runs_finished_total",
			Help:      "Generation runs that reached a terminal status or were cancelled.",
		}, []string{"status"}),
		malformedLines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "studio",
			Name:      "stream_malformed_lines_total",
			Help:      "Stream lines that could not be decoded.",
		}),
		transportErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "studio",
			Name:      "stream_transport_errors_total",
			Help:      "Streams that failed before a terminal event.",
		}),
		activeStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "studio",
			Name:      "active_streams",
			Help:      "Streams currently open.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.runsStarted, m.runsFinished, m.malformedLines, m.transportErrors, m.activeStreams)
	}
	return m
}

// RunStarted counts a new run and marks its stream active
func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.runsStarted.Inc()
	m.activeStreams.Inc()
}

// RunFinished counts a run leaving the controller. status is empty when the run was cancelled.
func (m *Metrics) RunFinished(status types.Status) {
	if m == nil {
		return
	}
	label := string(status)
	if label == "" {
		label = "cancelled"
	}
	m.runsFinished.WithLabelValues(label).Inc()
	m.activeStreams.Dec()
}

// MalformedLine counts a stream line that failed to decode
func (m *Metrics) MalformedLine() {
	if m == nil {
		return
	}
	m.malformedLines.Inc()
}

// TransportError counts a stream that broke before a terminal event
func (m *Metrics) TransportError() {
	if m == nil {
		return
	}
	m.transportErrors.Inc()
}
