package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WarmerMetrics struct {
	registry *prometheus.Registry

	batchesTotal  *prometheus.CounterVec
	textsTotal    *prometheus.CounterVec
	batchDuration *prometheus.HistogramVec
	batchSize     *prometheus.HistogramVec
}

func NewWarmerMetrics(service string) *WarmerMetrics {
	registry := prometheus.NewRegistry()

	batchesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rankline",
			Subsystem: "warmer",
			Name:      "batches_total",
			Help:      "Total processed warmup batches by status.",
		},
		[]string{"service", "status"},
	)
	textsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rankline",
			Subsystem: "warmer",
			Name:      "texts_total",
			Help:      "Total query texts pushed through the warmup path.",
		},
		[]string{"service"},
	)
	batchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rankline",
			Subsystem: "warmer",
			Name:      "batch_duration_seconds",
			Help:      "Warmup batch processing duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	batchSize := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rankline",
			Subsystem: "warmer",
			Name:      "batch_size",
			Help:      "Distribution of texts per warmup batch.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250},
		},
		[]string{"service"},
	)

	registry.MustRegister(batchesTotal, textsTotal, batchDuration, batchSize)

	return &WarmerMetrics{
		registry:      registry,
		batchesTotal:  batchesTotal,
		textsTotal:    textsTotal,
		batchDuration: batchDuration,
		batchSize:     batchSize,
	}
}

func (m *WarmerMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *WarmerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WarmerMetrics) RecordBatch(service string, texts int, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.batchesTotal.WithLabelValues(service, status).Inc()
	m.batchDuration.WithLabelValues(service, status).Observe(duration.Seconds())
	if err == nil {
		m.textsTotal.WithLabelValues(service).Add(float64(texts))
		m.batchSize.WithLabelValues(service).Observe(float64(texts))
	}
}
