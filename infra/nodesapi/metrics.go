package nodesapi

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type requestMetrics struct {
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newRequestMetrics(reg prometheus.Registerer) (*requestMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	total := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "platform_requests_total",
		Help: "Requests sent to the trading platform API",
	}, []string{"collection", "method", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "platform_request_duration_seconds",
		Help:    "Latency of trading platform API requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"collection", "method"})

	if err := reg.Register(total); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		total = are.ExistingCollector.(*prometheus.CounterVec)
	}
	if err := reg.Register(duration); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		duration = are.ExistingCollector.(*prometheus.HistogramVec)
	}
	return &requestMetrics{total: total, duration: duration}, nil
}

func (m *requestMetrics) observe(collection, method, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.total.WithLabelValues(collection, method, status).Inc()
	m.duration.WithLabelValues(collection, method).Observe(d.Seconds())
}
