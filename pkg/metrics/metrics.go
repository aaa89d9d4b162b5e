package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobTake = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sendpool",
		Name:      "job_take_total",
		Help:      "Job take attempts by outcome code.",
	}, []string{"result"})

	Dispatch = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sendpool",
		Name:      "dispatch_total",
		Help:      "Outbound sends by result.",
	}, []string{"driver", "result"})

	DispatchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sendpool",
		Name:      "dispatch_duration_seconds",
		Help:      "Time spent in the outbound send call.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"driver"})

	Settlement = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sendpool",
		Name:      "settlement_total",
		Help:      "Delivery notifications by settlement result.",
	}, []string{"result"})

	NotificationBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sendpool",
		Name:      "notification_batches_total",
		Help:      "Inbound delivery notification batches by source.",
	}, []string{"source"})

	LedgerMismatches = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sendpool",
		Name:      "ledger_mismatched_accounts",
		Help:      "Accounts whose cached balance differs from their ledger sum at the last reconcile.",
	})
)
