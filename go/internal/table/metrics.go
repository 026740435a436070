package table

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector defines the interface for collecting table metrics
type MetricsCollector interface {
	RecordGameScheduled()
	RecordGameCompleted(duration time.Duration)
	RecordScoreMismatch()
	RecordRejected(op string, reason string)
}

// NoOpMetricsCollector is a no-op implementation for when metrics aren't needed
type NoOpMetricsCollector struct{}

func (n *NoOpMetricsCollector) RecordGameScheduled()                       {}
func (n *NoOpMetricsCollector) RecordGameCompleted(duration time.Duration) {}
func (n *NoOpMetricsCollector) RecordScoreMismatch()                       {}
func (n *NoOpMetricsCollector) RecordRejected(op string, reason string)    {}

// PrometheusMetrics implements MetricsCollector using Prometheus
type PrometheusMetrics struct {
	gamesScheduled prometheus.Counter
	gamesCompleted prometheus.Counter
	gameDuration   prometheus.Histogram
	scoreMismatch  prometheus.Counter
	rejected       *prometheus.CounterVec
}

// NewPrometheusMetrics creates the collectors and registers them with reg.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	m := &PrometheusMetrics{
		gamesScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tablematch",
			Name:      "games_scheduled_total",
			Help:      "Games placed on the table.",
		}),
		gamesCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tablematch",
			Name:      "games_completed_total",
			Help:      "Games with agreed scores.",
		}),
		gameDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tablematch",
			Name:      "game_duration_seconds",
			Help:      "Time from get-ready to accepted scores.",
			Buckets:   prometheus.ExponentialBuckets(60, 2, 8),
		}),
		scoreMismatch: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tablematch",
			Name:      "score_mismatches_total",
			Help:      "Score submissions where both teams disagreed.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tablematch",
			Name:      "rejected_operations_total",
			Help:      "Operations rejected by the orchestrator.",
		}, []string{"op", "reason"}),
	}
	reg.MustRegister(m.gamesScheduled, m.gamesCompleted, m.gameDuration, m.scoreMismatch, m.rejected)
	return m
}

func (m *PrometheusMetrics) RecordGameScheduled() {
	m.gamesScheduled.Inc()
}

func (m *PrometheusMetrics) RecordGameCompleted(duration time.Duration) {
	m.gamesCompleted.Inc()
	m.gameDuration.Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordScoreMismatch() {
	m.scoreMismatch.Inc()
}

func (m *PrometheusMetrics) RecordRejected(op string, reason string) {
	m.rejected.WithLabelValues(op, reason).Inc()
}
