// Package monitoring exposes the service's prometheus collectors.
package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "parbi"

// Metrics records predictions, model cache activity and page views. It
// satisfies classify.Metrics.
type Metrics struct {
	registry *prometheus.Registry

	predictions     *prometheus.CounterVec
	predictionErrs  *prometheus.CounterVec
	predictionTime  *prometheus.HistogramVec
	cacheEvents     *prometheus.CounterVec
	pageViews       *prometheus.CounterVec
	websocketActive prometheus.Gauge
}

// NewMetrics registers every collector on a fresh registry, so tests can
// build as many as they like.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "predictions_total",
			Help:      "Successful predictions by model and category.",
		}, []string{"model", "category"}),
		predictionErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prediction_errors_total",
			Help:      "Failed predictions by model and error kind.",
		}, []string{"model", "kind"}),
		predictionTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "prediction_duration_seconds",
			Help:      "Time spent loading, vectorizing and predicting.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"model"}),
		cacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_cache_events_total",
			Help:      "Model cache hits, misses, reloads and evictions.",
		}, []string{"event"}),
		pageViews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_views_total",
			Help:      "Rendered pages.",
		}, []string{"page"}),
		websocketActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_sessions",
			Help:      "Open live prediction sessions.",
		}),
	}
	m.registry.MustRegister(
		m.predictions,
		m.predictionErrs,
		m.predictionTime,
		m.cacheEvents,
		m.pageViews,
		m.websocketActive,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) PredictionDone(model, category string, elapsed time.Duration) {
	m.predictions.WithLabelValues(model, category).Inc()
	m.predictionTime.WithLabelValues(model).Observe(elapsed.Seconds())
}

func (m *Metrics) PredictionFailed(model, kind string) {
	m.predictionErrs.WithLabelValues(model, kind).Inc()
}

func (m *Metrics) CacheEvent(event string) {
	m.cacheEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) PageViewed(page string) {
	m.pageViews.WithLabelValues(page).Inc()
}

// SessionOpened and SessionClosed track live websocket sessions.
func (m *Metrics) SessionOpened() { m.websocketActive.Inc() }

func (m *Metrics) SessionClosed() { m.websocketActive.Dec() }

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
