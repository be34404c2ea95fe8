package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/legal-rag-assistant/internal/core/domain"
)

// ChatMetrics counts answered turns. It satisfies ports.ChatObserver.
type ChatMetrics struct {
	service string

	turnsTotal   *prometheus.CounterVec
	turnDuration *prometheus.HistogramVec
	ragSources   prometheus.Histogram
	ragNoContext prometheus.Counter
}

func NewChatMetrics(service string, registerer prometheus.Registerer) *ChatMetrics {
	turnsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Answered turns by routing label.",
		},
		[]string{"service", "label", "used_rag"},
	)
	turnDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "turn_duration_seconds",
			Help:      "Time to classify, handle and format one turn.",
			Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		},
		[]string{"service", "label"},
	)
	ragSources := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "rag",
			Name:        "sources",
			Help:        "Sources cited per retrieval-backed answer.",
			Buckets:     []float64{0, 1, 2, 3, 5},
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	ragNoContext := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "rag",
			Name:        "no_context_total",
			Help:        "Retrieval-backed turns that found no document.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)

	registerer.MustRegister(turnsTotal, turnDuration, ragSources, ragNoContext)

	return &ChatMetrics{
		service:      service,
		turnsTotal:   turnsTotal,
		turnDuration: turnDuration,
		ragSources:   ragSources,
		ragNoContext: ragNoContext,
	}
}

func (m *ChatMetrics) ObserveTurn(label domain.Label, usedRAG bool, sources int, duration time.Duration) {
	m.turnsTotal.WithLabelValues(m.service, string(label), strconv.FormatBool(usedRAG)).Inc()
	m.turnDuration.WithLabelValues(m.service, string(label)).Observe(duration.Seconds())
	if !usedRAG {
		return
	}
	m.ragSources.Observe(float64(sources))
	if sources == 0 {
		m.ragNoContext.Inc()
	}
}
