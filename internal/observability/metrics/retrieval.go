package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/velesk/rankline/internal/core/domain"
	"github.com/velesk/rankline/internal/core/ports"
)

// RetrievalMetrics implements ports.PipelineObserver on a prometheus
// registry. One instance per process; all methods are safe for concurrent
// use.
type RetrievalMetrics struct {
	service string

	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	resultsPerRequest  *prometheus.HistogramVec
	degradedTotal      *prometheus.CounterVec
	strategyDuration   *prometheus.HistogramVec
	strategyCandidates *prometheus.HistogramVec
	strategyErrors     *prometheus.CounterVec
}

func NewRetrievalMetrics(service string, registry *prometheus.Registry) *RetrievalMetrics {
	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rankline",
			Subsystem: "retrieval",
			Name:      "requests_total",
			Help:      "Total retrieval requests by outcome.",
		},
		[]string{"service", "degraded", "reformulated"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rankline",
			Subsystem: "retrieval",
			Name:      "request_duration_seconds",
			Help:      "End-to-end retrieval duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 1.5, 2, 2.5, 5},
		},
		[]string{"service"},
	)
	resultsPerRequest := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rankline",
			Subsystem: "retrieval",
			Name:      "results_per_request",
			Help:      "Distribution of returned results per request.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21, 25},
		},
		[]string{"service"},
	)
	degradedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rankline",
			Subsystem: "retrieval",
			Name:      "degraded_total",
			Help:      "Total requests served without the semantic strategy.",
		},
		[]string{"service"},
	)
	strategyDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rankline",
			Subsystem: "strategy",
			Name:      "duration_seconds",
			Help:      "Per-strategy search duration in seconds.",
			Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 1.2, 2},
		},
		[]string{"service", "strategy"},
	)
	strategyCandidates := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rankline",
			Subsystem: "strategy",
			Name:      "candidates",
			Help:      "Distribution of candidates returned per strategy call.",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 35, 50},
		},
		[]string{"service", "strategy"},
	)
	strategyErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rankline",
			Subsystem: "strategy",
			Name:      "errors_total",
			Help:      "Total strategy failures absorbed by the pipeline.",
		},
		[]string{"service", "strategy"},
	)

	registry.MustRegister(
		requestsTotal,
		requestDuration,
		resultsPerRequest,
		degradedTotal,
		strategyDuration,
		strategyCandidates,
		strategyErrors,
	)

	return &RetrievalMetrics{
		service:            service,
		requestsTotal:      requestsTotal,
		requestDuration:    requestDuration,
		resultsPerRequest:  resultsPerRequest,
		degradedTotal:      degradedTotal,
		strategyDuration:   strategyDuration,
		strategyCandidates: strategyCandidates,
		strategyErrors:     strategyErrors,
	}
}

func (m *RetrievalMetrics) StrategyCompleted(origin domain.StrategyOrigin, seconds float64, candidates int, err error) {
	m.strategyDuration.WithLabelValues(m.service, string(origin)).Observe(seconds)
	if err != nil {
		m.strategyErrors.WithLabelValues(m.service, string(origin)).Inc()
		return
	}
	m.strategyCandidates.WithLabelValues(m.service, string(origin)).Observe(float64(candidates))
}

func (m *RetrievalMetrics) RequestCompleted(info domain.RetrievalInfo, results int, seconds float64) {
	m.requestsTotal.WithLabelValues(m.service, boolLabel(info.Degraded), boolLabel(info.Reformulated)).Inc()
	m.requestDuration.WithLabelValues(m.service).Observe(seconds)
	m.resultsPerRequest.WithLabelValues(m.service).Observe(float64(results))
	if info.Degraded {
		m.degradedTotal.WithLabelValues(m.service).Inc()
	}
}

// RegisterCacheStats exports the embedding cache counters as gauges pulled
// from the inspector on every scrape.
func RegisterCacheStats(service string, registry *prometheus.Registry, inspector ports.CacheInspector) {
	gauge := func(name, help string, value func(domain.CacheStats) float64) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace:   "rankline",
				Subsystem:   "cache",
				Name:        name,
				Help:        help,
				ConstLabels: prometheus.Labels{"service": service},
			},
			func() float64 { return value(inspector.Stats()) },
		)
	}

	registry.MustRegister(
		gauge("hits_total", "Total embedding cache hits.", func(s domain.CacheStats) float64 { return float64(s.Hits) }),
		gauge("misses_total", "Total embedding cache misses.", func(s domain.CacheStats) float64 { return float64(s.Misses) }),
		gauge("evictions_total", "Total LRU evictions.", func(s domain.CacheStats) float64 { return float64(s.Evictions) }),
		gauge("expirations_total", "Total TTL expirations.", func(s domain.CacheStats) float64 { return float64(s.Expirations) }),
		gauge("entries", "Current cache entry count.", func(s domain.CacheStats) float64 { return float64(s.Size) }),
		gauge("hit_rate", "Cache hit rate since process start.", func(s domain.CacheStats) float64 { return s.HitRate }),
		gauge("estimated_savings_usd", "Estimated provider cost avoided.", func(s domain.CacheStats) float64 { return s.EstimatedSavings }),
	)
}

func boolLabel(v bool) string {
	if v {
		return "true"
	}
	return "false"
}
