// Package metrics holds the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "bountyboard",
	Subsystem: "http",
	Name:      "request_duration_seconds",
	Help:      "HTTP request latency by route template, method and status.",
	Buckets:   prometheus.DefBuckets,
}, []string{"route", "method", "status"})

var TaskTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "bountyboard",
	Subsystem: "tasks",
	Name:      "transitions_total",
	Help:      "Task status transitions by target status.",
}, []string{"status"})

var TaskOperationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "bountyboard",
	Subsystem: "tasks",
	Name:      "operation_failures_total",
	Help:      "Rejected task operations by operation and error kind.",
}, []string{"operation", "kind"})

var WalletCredits = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "bountyboard",
	Subsystem: "wallet",
	Name:      "credits_total",
	Help:      "Credits moved through wallets by flow and transaction type.",
}, []string{"flow", "type"})

var ProofArchiveFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "bountyboard",
	Subsystem: "proofs",
	Name:      "archive_failures_total",
	Help:      "Proof images that could not be mirrored to object storage.",
})

var LoginLockouts = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "bountyboard",
	Subsystem: "auth",
	Name:      "lockouts_total",
	Help:      "Accounts locked after repeated failed logins.",
})
