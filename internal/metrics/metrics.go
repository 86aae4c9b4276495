// Package metrics exposes Prometheus instrumentation for training, prediction
// and the HTTP API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/sells-group/campus-locator/internal/model"
)

var (
	// Training
	TrainRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campus_train_runs_total",
			Help: "Total number of training runs by outcome",
		},
		[]string{"status"},
	)

	TrainDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "campus_train_duration_seconds",
			Help:    "Duration of training runs in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	TrainEvents = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "campus_train_events",
			Help: "Events read and resolved by the latest successful training run",
		},
		[]string{"stage"},
	)

	ModelEntities = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "campus_model_entities",
			Help: "Entities clustered in the current model",
		},
	)

	ModelClusters = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "campus_model_clusters",
			Help: "Clusters in the current model",
		},
	)

	// Prediction
	PredictionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campus_predictions_total",
			Help: "Total predictions served by fallback method",
		},
		[]string{"method"},
	)

	PredictionCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "campus_prediction_cache_hits_total",
			Help: "Total prediction memo cache hits",
		},
	)

	PredictionCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "campus_prediction_cache_misses_total",
			Help: "Total prediction memo cache misses",
		},
	)

	// API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campus_api_requests_total",
			Help: "Total API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "campus_api_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	APIRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "campus_api_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
	)
)

// RecordTrain records the outcome of one training run. stats is nil for
// failed runs.
func RecordTrain(duration time.Duration, stats *model.TrainStats, err error) {
	TrainDuration.Observe(duration.Seconds())
	if err != nil {
		TrainRunsTotal.WithLabelValues(string(model.TrainStatusFailed)).Inc()
		return
	}
	TrainRunsTotal.WithLabelValues(string(model.TrainStatusComplete)).Inc()
	if stats == nil {
		return
	}
	TrainEvents.WithLabelValues("read").Set(float64(stats.EventsRead))
	TrainEvents.WithLabelValues("resolved").Set(float64(stats.EventsResolved))
	ModelEntities.Set(float64(stats.Entities))
	ModelClusters.Set(float64(stats.Clusters))
}

// RecordPrediction counts a served prediction.
func RecordPrediction(method model.Method, cached bool) {
	PredictionsTotal.WithLabelValues(string(method)).Inc()
	if cached {
		PredictionCacheHits.Inc()
	} else {
		PredictionCacheMisses.Inc()
	}
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
