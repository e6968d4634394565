package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the event layer's Prometheus instrumentation, grounded on
// abdoElHodaky-tradSys's internal/monitoring/metrics.go use of promauto
// constructors against the default registry.
type Metrics struct {
	published    *prometheus.CounterVec
	dropped      *prometheus.CounterVec
	queueDepth   prometheus.Gauge
	handlerError *prometheus.CounterVec
}

// NewMetrics registers the event layer's metrics against the default
// Prometheus registry. Safe to call once per process.
func NewMetrics() *Metrics {
	return &Metrics{
		published: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skarn_events_published_total",
				Help: "Total number of events published to the bus, by tag.",
			},
			[]string{"tag"},
		),
		dropped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skarn_events_dropped_total",
				Help: "Total number of events a lagging subscriber had to skip.",
			},
			[]string{"handler"},
		),
		queueDepth: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "skarn_events_dispatcher_queue_depth",
				Help: "Number of handler tasks waiting for a free dispatcher pool worker, sampled after each event is fanned out.",
			},
		),
		handlerError: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "skarn_events_handler_errors_total",
				Help: "Total number of handler invocations that returned an error, by handler and tag.",
			},
			[]string{"handler", "tag"},
		),
	}
}

func (m *Metrics) recordPublished(tag Tag) {
	if m == nil {
		return
	}
	m.published.WithLabelValues(string(tag)).Inc()
}

func (m *Metrics) recordDropped(handler string, n uint64) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(handler).Add(float64(n))
}

func (m *Metrics) setQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *Metrics) recordHandlerError(handler string, tag Tag) {
	if m == nil {
		return
	}
	m.handlerError.WithLabelValues(handler, string(tag)).Inc()
}
