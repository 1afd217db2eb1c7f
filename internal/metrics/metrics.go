// Package metrics exposes the server's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConnectedUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "strangerwave_connected_users",
			Help: "Users with a live connection",
		},
	)

	QueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "strangerwave_queue_length",
			Help: "Users waiting for a partner",
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "strangerwave_active_sessions",
			Help: "Chat sessions currently active",
		},
	)

	MatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "strangerwave_matches_total",
			Help: "Sessions created by the matching engine",
		},
	)

	MatchCommitFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strangerwave_match_commit_failures_total",
			Help: "Match commits that did not produce a session",
		},
		[]string{"reason"}, // "lost_race", "store_error"
	)

	MatchScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "strangerwave_match_score",
			Help:    "Compatibility score of committed matches",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		},
	)

	SessionsEnded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strangerwave_sessions_ended_total",
			Help: "Ended sessions by reason",
		},
		[]string{"reason"},
	)

	SessionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "strangerwave_session_duration_seconds",
			Help:    "Length of ended chat sessions",
			Buckets: []float64{10, 30, 60, 120, 300, 600, 1800, 3600},
		},
	)

	MessagesRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strangerwave_messages_total",
			Help: "Messages handled by the relay by outcome",
		},
		[]string{"outcome"}, // "delivered", "suppressed", "rate_limited", "store_error"
	)

	GateFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strangerwave_gate_failures_total",
			Help: "Moderation and translation calls that fell back to passthrough",
		},
		[]string{"gate"},
	)

	AutoBans = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "strangerwave_auto_bans_total",
			Help: "Users banned automatically by moderation",
		},
	)
)

func RecordMatch(score float64) {
	MatchesTotal.Inc()
	MatchScore.Observe(score)
}

func RecordSessionEnd(reason string, duration time.Duration) {
	SessionsEnded.WithLabelValues(reason).Inc()
	SessionDuration.Observe(duration.Seconds())
}

func RecordMessage(outcome string) {
	MessagesRelayed.WithLabelValues(outcome).Inc()
}

func RecordGateFailure(gate string) {
	GateFailures.WithLabelValues(gate).Inc()
}
