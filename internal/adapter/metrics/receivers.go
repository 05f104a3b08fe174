package metrics

import "github.com/prometheus/client_golang/prometheus"

// ReceiverMetrics holds Prometheus metrics for the broadcast registry and its receivers.
type ReceiverMetrics struct {
	ActiveReceivers    prometheus.Gauge
	Broadcasts         *prometheus.CounterVec
	MessagesQueued     prometheus.Counter
	Evictions          *prometheus.CounterVec
	SendDuration       prometheus.Histogram
	CommandQueueDepth  prometheus.Gauge
	RegistryPanics     prometheus.Counter
	RejectedHandshakes *prometheus.CounterVec
}

func NewReceiverMetrics(reg prometheus.Registerer) *ReceiverMetrics {
	m := &ReceiverMetrics{
		ActiveReceivers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "receivers",
			Name:      "active",
			Help:      "Number of registered receiver connections.",
		}),
		Broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "receivers",
			Name:      "broadcasts_total",
			Help:      "Total number of broadcasts, by outcome (delivered, no_receivers).",
		}, []string{"outcome"}),
		MessagesQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "receivers",
			Name:      "messages_queued_total",
			Help:      "Total number of messages queued to individual receivers.",
		}),
		Evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "receivers",
			Name:      "evictions_total",
			Help:      "Total number of receivers removed by the registry, by reason (queue_full, write_error, closed).",
		}, []string{"reason"}),
		SendDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "receivers",
			Name:      "send_duration_seconds",
			Help:      "Time spent writing one message to a receiver connection.",
			Buckets:   prometheus.DefBuckets,
		}),
		CommandQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "receivers",
			Name:      "registry_command_queue_depth",
			Help:      "Number of commands waiting for the registry goroutine.",
		}),
		RegistryPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "receivers",
			Name:      "registry_panics_total",
			Help:      "Total number of panics recovered in the registry goroutine.",
		}),
		RejectedHandshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "receivers",
			Name:      "rejected_handshakes_total",
			Help:      "Total number of receiver handshakes refused, by reason (capacity, upgrade, stopped, rate_limited).",
		}, []string{"reason"}),
	}

	reg.MustRegister(m.ActiveReceivers, m.Broadcasts, m.MessagesQueued, m.Evictions,
		m.SendDuration, m.CommandQueueDepth, m.RegistryPanics, m.RejectedHandshakes)
	return m
}
