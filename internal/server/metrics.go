package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	registry  *prometheus.Registry
	requests  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	polygons  *prometheus.CounterVec
	relations *prometheus.CounterVec
	cache     *prometheus.CounterVec
}

// newMetrics registers the collectors on a private registry so several
// servers can live in one process (tests do this).
func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "change_detection",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "change_detection",
			Name:      "match_duration_seconds",
			Help:      "Time spent matching and classifying one request.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"route"}),
		polygons: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "change_detection",
			Name:      "polygons_total",
			Help:      "Polygons matched, by side.",
		}, []string{"side"}),
		relations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "change_detection",
			Name:      "components_total",
			Help:      "Components produced, by relation.",
		}, []string{"relation"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "change_detection",
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups by outcome.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(m.requests, m.duration, m.polygons, m.relations, m.cache)
	return m
}
