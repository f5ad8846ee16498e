package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's instrumentation. All collectors are registered
// on the registry passed to New, which the HTTP layer exposes on /metrics.
type Metrics struct {
	Registry *prometheus.Registry

	FeedPagesTotal    *prometheus.CounterVec
	InteractionsTotal *prometheus.CounterVec
	StoryBarsBuilt    prometheus.Counter
	StoryViewsMarked  prometheus.Counter
	RequestDuration   *prometheus.HistogramVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		Registry: registry,
		FeedPagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "feed_pages_served_total",
			Help: "Feed pages served, by source.",
		}, []string{"source"}),
		InteractionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "interactions_total",
			Help: "Optimistic interactions, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		StoryBarsBuilt: factory.NewCounter(prometheus.CounterOpts{
			Name: "story_bars_built_total",
			Help: "Story bar assemblies served.",
		}),
		StoryViewsMarked: factory.NewCounter(prometheus.CounterOpts{
			Name: "story_views_marked_total",
			Help: "Story view records written.",
		}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}
