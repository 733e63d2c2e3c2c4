// Package metrics provides Prometheus metrics for the habit room backend.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Ledger ─────────────────────────────────────────────────────────────────

// LedgerMutations counts completion writes by operation
// (create, increment, decrement, delete, noop).
var LedgerMutations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "habitroom",
	Name:      "ledger_mutations_total",
	Help:      "Completion ledger operations by outcome.",
}, []string{"op"})

// ─── Reminder job ───────────────────────────────────────────────────────────

// JobRuns counts scheduled job runs by kind and outcome (ok, failed).
var JobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "habitroom",
	Name:      "job_runs_total",
	Help:      "Reminder job runs.",
}, []string{"kind", "outcome"})

// JobDuration tracks wall time of a full reminder run.
var JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "habitroom",
	Name:      "job_duration_seconds",
	Help:      "Reminder job duration in seconds.",
	Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
}, []string{"kind"})

// EmailsSent counts delivered messages by variant.
var EmailsSent = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "habitroom",
	Name:      "emails_sent_total",
	Help:      "Emails handed to the delivery provider.",
}, []string{"variant"})

// EmailsFailed counts per-recipient delivery failures by variant.
var EmailsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "habitroom",
	Name:      "emails_failed_total",
	Help:      "Emails the delivery provider rejected.",
}, []string{"variant"})

// ─── Live feed ──────────────────────────────────────────────────────────────

// LiveSubscribers tracks open leaderboard sockets.
var LiveSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "habitroom",
	Name:      "live_subscribers",
	Help:      "Open live leaderboard connections.",
})

// LivePushes counts snapshots pushed to subscribers.
var LivePushes = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "habitroom",
	Name:      "live_pushes_total",
	Help:      "Leaderboard snapshots pushed over live connections.",
})
