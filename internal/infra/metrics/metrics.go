// Package metrics provides Prometheus metrics for the delivery engine:
// task throughput, gateway health, and earnings.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Tasks ──────────────────────────────────────────────────────────────────

// TasksAccepted counts tasks this partner has accepted.
var TasksAccepted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "agora",
	Name:      "tasks_accepted_total",
	Help:      "Total delivery tasks accepted.",
})

// TasksCompleted counts code-confirmed completions.
var TasksCompleted = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "agora",
	Name:      "tasks_completed_total",
	Help:      "Total delivery tasks completed.",
})

// OngoingTasks tracks the current ongoing-partition size.
var OngoingTasks = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "agora",
	Name:      "tasks_ongoing",
	Help:      "Number of deliveries currently in progress.",
})

// ─── Gateway ────────────────────────────────────────────────────────────────

// GatewayFailures counts gateway calls that degraded to the local mirror.
var GatewayFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "agora",
	Name:      "gateway_failures_total",
	Help:      "Gateway calls that fell back to the local mirror.",
})

// ─── Earnings ───────────────────────────────────────────────────────────────

// EarningsAllTime tracks the all-time earned amount in rupees.
var EarningsAllTime = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "agora",
	Name:      "earnings_all_time_rupees",
	Help:      "All-time delivery earnings.",
})

// PendingBalance tracks the unpaid balance in rupees.
var PendingBalance = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "agora",
	Name:      "earnings_pending_rupees",
	Help:      "Earnings not yet transferred out.",
})
