// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Voting metrics
	VotesCast = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deliberation_votes_cast_total",
			Help: "Total number of phase 1 votes cast by value",
		},
		[]string{"vote"},
	)

	SelectionToggles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deliberation_selection_toggles_total",
			Help: "Total number of phase 2 selection toggles by outcome",
		},
		[]string{"outcome"},
	)

	BallotSubmits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deliberation_ballot_submits_total",
			Help: "Total number of ballot submit toggles by resulting state",
		},
		[]string{"submitted"},
	)

	RejectedMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deliberation_rejected_mutations_total",
			Help: "Total number of rejected vote and ballot mutations by reason",
		},
		[]string{"reason"},
	)

	// Facilitator metrics
	StatusTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deliberation_status_transitions_total",
			Help: "Total number of session status transitions by target status",
		},
		[]string{"status"},
	)

	// Realtime metrics
	LiveSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "deliberation_live_subscribers",
			Help: "Number of active change-notification subscriptions",
		},
	)

	NotificationsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "deliberation_notifications_dropped_total",
			Help: "Notifications dropped because a subscriber buffer was full",
		},
	)

	ReconcileRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deliberation_reconcile_refreshes_total",
			Help: "Authoritative pull refreshes by trigger",
		},
		[]string{"trigger"},
	)

	ReconcileDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "deliberation_reconcile_duration_seconds",
			Help:    "Time taken to rebuild a reconciled snapshot",
			Buckets: prometheus.DefBuckets,
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "deliberation_api_requests_total",
			Help: "Total number of API requests by method and status",
		},
		[]string{"method", "status"},
	)

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "deliberation_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(VotesCast)
	prometheus.MustRegister(SelectionToggles)
	prometheus.MustRegister(BallotSubmits)
	prometheus.MustRegister(RejectedMutations)
	prometheus.MustRegister(StatusTransitions)
	prometheus.MustRegister(LiveSubscribers)
	prometheus.MustRegister(NotificationsDropped)
	prometheus.MustRegister(ReconcileRefreshes)
	prometheus.MustRegister(ReconcileDuration)
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIRequestDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer measures the duration of an operation.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed time in seconds on a histogram.
func (t *Timer) ObserveDuration(h prometheus.Observer) {
	h.Observe(t.Duration().Seconds())
}

// ObserveDurationVec records the elapsed time on a labelled histogram.
func (t *Timer) ObserveDurationVec(h *prometheus.HistogramVec, labels ...string) {
	h.WithLabelValues(labels...).Observe(t.Duration().Seconds())
}
