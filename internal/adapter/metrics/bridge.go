package metrics

import "github.com/prometheus/client_golang/prometheus"

// BridgeMetrics covers the serial event path: decode, debounce, broadcast.
type BridgeMetrics struct {
	EventsTotal        *prometheus.CounterVec
	ProcessingDuration prometheus.Histogram
	InboxDepth         prometheus.Gauge
	State              prometheus.Gauge
}

func NewBridgeMetrics(reg prometheus.Registerer) *BridgeMetrics {
	m := &BridgeMetrics{
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "events_total",
			Help:      "Total number of inbound mood events, by result (bootstrap, forwarded, streak, cooldown, malformed, dropped).",
		}, []string{"result"}),
		ProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "processing_duration_seconds",
			Help:      "Time from dequeuing an event to handing its command to the registry.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}),
		InboxDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "inbox_depth",
			Help:      "Number of events waiting for the processing worker.",
		}),
		State: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "bridge",
			Name:      "active",
			Help:      "1 once the first mood has been forwarded, 0 while idle.",
		}),
	}

	reg.MustRegister(m.EventsTotal, m.ProcessingDuration, m.InboxDepth, m.State)
	return m
}
