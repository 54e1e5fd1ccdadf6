package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/apicatalog/internal/cache"
)

// Metrics holds the collectors served on /metrics. Each App gets its own
// registry so tests can build several.
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	authFail *prometheus.CounterVec
}

func NewMetrics(c *cache.Cache) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apicatalog",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route template, method and status.",
		}, []string{"route", "method", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "apicatalog",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route template.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		authFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "apicatalog",
			Name:      "auth_rejections_total",
			Help:      "Requests rejected by bearer authentication or a policy.",
		}, []string{"reason"}),
	}
	m.registry.MustRegister(m.requests, m.duration, m.authFail,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if c != nil {
		stat := func(pick func(cache.Stats) uint64) func() float64 {
			return func() float64 { return float64(pick(c.Stats())) }
		}
		m.registry.MustRegister(
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: "apicatalog", Subsystem: "cache", Name: "hits_total", Help: "Response cache hits.",
			}, stat(func(s cache.Stats) uint64 { return s.Hits })),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: "apicatalog", Subsystem: "cache", Name: "misses_total", Help: "Response cache misses.",
			}, stat(func(s cache.Stats) uint64 { return s.Misses })),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: "apicatalog", Subsystem: "cache", Name: "evictions_total", Help: "Entries evicted to respect capacity.",
			}, stat(func(s cache.Stats) uint64 { return s.Evictions })),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: "apicatalog", Subsystem: "cache", Name: "expirations_total", Help: "Expired entries removed.",
			}, stat(func(s cache.Stats) uint64 { return s.Expirations })),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: "apicatalog", Subsystem: "cache", Name: "entries", Help: "Entries currently cached.",
			}, func() float64 { return float64(c.Len()) }),
		)
	}
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) rejected(reason string) {
	m.authFail.WithLabelValues(reason).Inc()
}

// Instrument records per-route counters; the route label is the mux path
// template so ids do not explode cardinality.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(wrapped.statusCode)).Inc()
		m.duration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
