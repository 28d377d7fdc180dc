// Package metrics exposes the pipeline's Prometheus instrumentation.
// All label sets are bounded: outcome and kind labels come from the closed
// cycle error taxonomy, collaborator labels from the fixed agent roster.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cycle outcome label values
const (
	OutcomeExecuted = "executed"
	OutcomeHold     = "hold"
	OutcomeError    = "error"
)

// Decision cycle metrics
var (
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saka_decision_cycles_total",
		Help: "Total decision cycles by outcome (executed, hold, error)",
	}, []string{"outcome"})

	CycleErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saka_cycle_errors_total",
		Help: "Cycle failures by taxonomy kind",
	}, []string{"kind"})

	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "saka_cycle_duration_seconds",
		Help:    "End-to-end decision cycle duration",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	CyclesRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "saka_async_cycles_rejected_total",
		Help: "Asynchronous cycle submissions rejected because the worker pool was full",
	})
)

// Collaborator call metrics
var (
	CollaboratorCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saka_collaborator_calls_total",
		Help: "Calls to analyzer, advisor and sizer agents by collaborator and result",
	}, []string{"collaborator", "result"})

	CollaboratorLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "saka_collaborator_latency_seconds",
		Help:    "Collaborator call latency",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
	}, []string{"collaborator"})
)

// Execution metrics
var (
	OrdersPlaced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "saka_orders_placed_total",
		Help: "Orders sent to the exchange by side and receipt status",
	}, []string{"side", "status"})

	ReceiptsPersisted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "saka_receipts_persisted_total",
		Help: "Receipts durably written to the trade log",
	})
)

// Notification metrics
var (
	NotificationsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "saka_notifications_sent_total",
		Help: "Notifications successfully delivered",
	})

	NotificationsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "saka_notifications_dropped_total",
		Help: "Notifications dropped because the dispatch queue was full",
	})
)
