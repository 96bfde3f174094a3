package feed

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	subscribers prometheus.Gauge
	published   *prometheus.CounterVec
	dropped     prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "marksync",
			Subsystem: "feed",
			Name:      "subscribers",
			Help:      "Active change-feed subscribers.",
		}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marksync",
			Subsystem: "feed",
			Name:      "events_published_total",
			Help:      "Change-feed events published, by kind.",
		}, []string{"kind"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "marksync",
			Subsystem: "feed",
			Name:      "subscribers_dropped_total",
			Help:      "Subscribers dropped because their buffer was full.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.subscribers, m.published, m.dropped)
	}
	return m
}
