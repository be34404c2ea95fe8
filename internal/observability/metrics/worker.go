package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry
	service  string

	feedbackTotal    *prometheus.CounterVec
	feedbackDuration *prometheus.HistogramVec
	feedbackInFlight prometheus.Gauge
	queueLag         prometheus.Histogram
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	feedbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "feedback_persist_total",
			Help:      "Feedback events persisted by status.",
		},
		[]string{"service", "status"},
	)
	feedbackDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "feedback_persist_duration_seconds",
			Help:      "Feedback persistence duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	feedbackInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "feedback_in_flight",
			Help:      "Number of feedback events being persisted.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "queue_lag_seconds",
			Help:        "Delay between feedback creation and persistence start.",
			Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
			ConstLabels: prometheus.Labels{"service": service},
		},
	)

	registry.MustRegister(feedbackTotal, feedbackDuration, feedbackInFlight, queueLag)

	return &WorkerMetrics{
		registry:         registry,
		service:          service,
		feedbackTotal:    feedbackTotal,
		feedbackDuration: feedbackDuration,
		feedbackInFlight: feedbackInFlight,
		queueLag:         queueLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartFeedback(createdAt time.Time) {
	m.feedbackInFlight.Inc()
	if !createdAt.IsZero() {
		if lag := time.Since(createdAt); lag >= 0 {
			m.queueLag.Observe(lag.Seconds())
		}
	}
}

func (m *WorkerMetrics) FinishFeedback(duration time.Duration, err error) {
	m.feedbackInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.feedbackTotal.WithLabelValues(m.service, status).Inc()
	m.feedbackDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
}
