package web

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	requests    *prometheus.CounterVec
	feedSockets prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marksync",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		feedSockets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "marksync",
			Subsystem: "http",
			Name:      "feed_sockets",
			Help:      "Open change-feed WebSocket connections.",
		}),
	}
	reg.MustRegister(m.requests, m.feedSockets)
	return m
}

func (m *metrics) observe(method string, status int) {
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}
