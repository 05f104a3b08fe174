package metrics

import "github.com/prometheus/client_golang/prometheus"

// SourceMetrics tracks the upstream event source connection.
type SourceMetrics struct {
	Connected        prometheus.Gauge
	ConnectionLosses prometheus.Counter
	MessagesReceived prometheus.Counter
}

func NewSourceMetrics(reg prometheus.Registerer, kind string) *SourceMetrics {
	labels := prometheus.Labels{"source": kind}
	m := &SourceMetrics{
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "source",
			Name:        "connected",
			Help:        "1 while the event source connection is up.",
			ConstLabels: labels,
		}),
		ConnectionLosses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "source",
			Name:        "connection_losses_total",
			Help:        "Total number of times the event source connection was lost.",
			ConstLabels: labels,
		}),
		MessagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "source",
			Name:        "messages_received_total",
			Help:        "Total number of raw payloads received from the event source.",
			ConstLabels: labels,
		}),
	}

	reg.MustRegister(m.Connected, m.ConnectionLosses, m.MessagesReceived)
	return m
}
