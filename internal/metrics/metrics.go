package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/TheKrainBow/mnk/engine"
)

const namespace = "mnk"

// Search result labels.
const (
	ResultMove     = "move"
	ResultTimedOut = "timed_out"
	ResultNoMove   = "no_move"
	ResultError    = "error"
)

// Metrics owns its registry so tests and multiple servers never collide on
// the global default.
type Metrics struct {
	registry *prometheus.Registry

	SearchesTotal      *prometheus.CounterVec
	SearchNodes        prometheus.Histogram
	SearchDepth        prometheus.Histogram
	SearchSeconds      prometheus.Histogram
	CacheLookupsTotal  *prometheus.CounterVec
	GamesActive        prometheus.Gauge
	RateLimitedTotal   *prometheus.CounterVec
	WebsocketListeners prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		SearchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Completed move searches by result",
		}, []string{"result"}),
		SearchNodes: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_nodes",
			Help:      "Nodes visited per search",
			Buckets:   prometheus.ExponentialBuckets(10, 4, 10), // 10 to ~2.6M
		}),
		SearchDepth: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_depth",
			Help:      "Deepest completed iterative-deepening pass per search",
			Buckets:   prometheus.LinearBuckets(0, 1, engine.MaxSearchDepth+1),
		}),
		SearchSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_seconds",
			Help:      "Wall-clock time per search",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		}),
		CacheLookupsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Memo cache lookups by cache and outcome",
		}, []string{"cache", "outcome"}),
		GamesActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "games_active",
			Help:      "Game sessions currently held in memory",
		}),
		RateLimitedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the AI rate limiter",
		}, []string{"route"}),
		WebsocketListeners: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_listeners",
			Help:      "Connected search-progress websocket clients",
		}),
	}
}

// ObserveDecision records one finished ChooseMove call.
func (m *Metrics) ObserveDecision(d engine.Decision) {
	result := ResultMove
	switch {
	case !d.HasMove:
		result = ResultNoMove
	case d.TimedOut:
		result = ResultTimedOut
	}
	m.SearchesTotal.WithLabelValues(result).Inc()
	if !d.HasMove {
		return
	}
	m.SearchNodes.Observe(float64(d.Stats.Nodes))
	m.SearchDepth.Observe(float64(d.Depth))
	m.SearchSeconds.Observe(d.Stats.Elapsed.Seconds())
	m.CacheLookupsTotal.WithLabelValues("win", "hit").Add(float64(d.Stats.WinCacheHits))
	m.CacheLookupsTotal.WithLabelValues("win", "miss").Add(float64(d.Stats.WinCacheMisses))
	m.CacheLookupsTotal.WithLabelValues("eval", "hit").Add(float64(d.Stats.EvalCacheHits))
	m.CacheLookupsTotal.WithLabelValues("eval", "miss").Add(float64(d.Stats.EvalCacheMisses))
}

func (m *Metrics) ObserveSearchError() {
	m.SearchesTotal.WithLabelValues(ResultError).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
