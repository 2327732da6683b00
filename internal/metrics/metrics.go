// Package metrics exposes the Prometheus collectors of the service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockcast_http_requests_total",
			Help: "Total number of HTTP requests handled",
		},
		[]string{"method", "route", "status"},
	)
	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stockcast_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	signals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockcast_signals_total",
			Help: "Total number of consensus signals produced",
		},
		[]string{"signal", "strategy"},
	)
	forecastDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stockcast_forecast_duration_seconds",
			Help:    "Time spent training and forecasting in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"model", "backend"},
	)
	trainingRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockcast_training_rejections_total",
			Help: "Total number of training requests refused admission",
		},
		[]string{"reason"},
	)
)

// RecordHTTPRequest records one handled request.
func RecordHTTPRequest(method, route, status string, elapsed time.Duration) {
	httpRequests.WithLabelValues(method, route, status).Inc()
	httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// RecordSignal counts a produced consensus signal.
func RecordSignal(signal, strategy string) {
	signals.WithLabelValues(signal, strategy).Inc()
}

// RecordForecast records the duration of one training and forecast run.
func RecordForecast(model, backend string, elapsed time.Duration) {
	forecastDuration.WithLabelValues(model, backend).Observe(elapsed.Seconds())
}

// RecordTrainingRejection counts a refused training request.
func RecordTrainingRejection(reason string) {
	trainingRejections.WithLabelValues(reason).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
