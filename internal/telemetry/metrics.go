package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransactionsConsumed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "salestream_transactions_consumed_total",
		Help: "Total number of messages pulled from the event source.",
	})

	TransactionsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "salestream_transactions_applied_total",
		Help: "Total number of transactions applied to the aggregate store.",
	})

	TransactionsDuplicate = promauto.NewCounter(prometheus.CounterOpts{
		Name: "salestream_transactions_duplicate_total",
		Help: "Total number of redelivered transactions skipped via the ledger.",
	})

	TransactionsDeadLettered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "salestream_transactions_dead_lettered_total",
		Help: "Total number of malformed payloads routed to the dead-letter sink.",
	})

	StorageFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "salestream_storage_failures_total",
		Help: "Total number of aggregate store apply failures (message nacked for redelivery).",
	})

	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "salestream_cache_hits_total",
		Help: "Total number of aggregate cache hits.",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "salestream_cache_misses_total",
		Help: "Total number of aggregate cache misses (store loads).",
	})

	ApplyDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "salestream_apply_duration_ms",
		Help:    "Latency of one transaction apply (validate through invalidate) in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	})
)
