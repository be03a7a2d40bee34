package tracker

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	inFlight prometheus.Gauge
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// WithRegisterer registers request metrics with reg:
//
//	webrun_http_requests_in_flight
//	webrun_http_requests_total{code}
//	webrun_http_request_duration_seconds{method}
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(t *Tracker) {
		if reg == nil {
			return
		}
		f := promauto.With(reg)
		t.metrics = &metrics{
			inFlight: f.NewGauge(prometheus.GaugeOpts{
				Namespace: "webrun",
				Subsystem: "http",
				Name:      "requests_in_flight",
				Help:      "Current number of HTTP requests being served",
			}),
			requests: f.NewCounterVec(prometheus.CounterOpts{
				Namespace: "webrun",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by status class",
			}, []string{"code"}),
			duration: f.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "webrun",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latencies in seconds",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
		}
	}
}

func (m *metrics) observe(method string, status int, d time.Duration) {
	m.requests.WithLabelValues(statusClass(status)).Inc()
	m.duration.WithLabelValues(method).Observe(d.Seconds())
}

// statusClass maps 404 to "4xx".
func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}
