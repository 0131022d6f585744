package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Request counters
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parley",
			Subsystem: "server",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// Request duration histogram
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "parley",
			Subsystem: "server",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"method", "endpoint"},
	)

	// Completed and failed chat turns per provider/model
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parley",
			Subsystem: "server",
			Name:      "chat_turns_total",
			Help:      "Chat turns by outcome",
		},
		[]string{"provider", "model", "status"},
	)

	// Streamed delta count per provider
	StreamDeltasTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parley",
			Subsystem: "server",
			Name:      "stream_deltas_total",
			Help:      "Content deltas forwarded to clients",
		},
		[]string{"provider"},
	)

	// Persist outcomes
	PersistsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "parley",
			Subsystem: "server",
			Name:      "conversation_persists_total",
			Help:      "Conversation persist calls by operation and status",
		},
		[]string{"operation", "status"},
	)

	// Provider stream duration
	StreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "parley",
			Subsystem: "server",
			Name:      "stream_duration_seconds",
			Help:      "Provider stream duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"provider", "model"},
	)
)

// RecordRequest records an HTTP request
func RecordRequest(method, endpoint, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint).Observe(durationSec)
}

// RecordTurn records one chat turn outcome
func RecordTurn(provider, model, status string, durationSec float64) {
	TurnsTotal.WithLabelValues(provider, model, status).Inc()
	StreamDuration.WithLabelValues(provider, model).Observe(durationSec)
}

// RecordPersist records a conversation persist outcome
func RecordPersist(operation, status string) {
	PersistsTotal.WithLabelValues(operation, status).Inc()
}
