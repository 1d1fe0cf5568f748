// Package metrics exposes prometheus instrumentation for store operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storeOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chainstate",
		Subsystem: "store",
		Name:      "operations_total",
		Help:      "Count of chainstate store operations.",
	}, []string{"store", "operation", "status"})
	storeOpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "chainstate",
		Subsystem: "store",
		Name:      "operation_duration_seconds",
		Help:      "Duration of chainstate store operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"store", "operation", "status"})
	batchKeysTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "chainstate",
		Subsystem: "store",
		Name:      "batch_keys_total",
		Help:      "Keys written or deleted through atomic batches.",
	}, []string{"store", "kind"})
)

// ObserveStoreOp records one store operation with its outcome and duration.
func ObserveStoreOp(store, operation string, err error, started time.Time) {
	status := "success"
	if err != nil {
		status = "error"
	}

	storeOpsTotal.WithLabelValues(store, operation, status).Inc()
	storeOpDuration.WithLabelValues(store, operation, status).Observe(time.Since(started).Seconds())
}

// AddBatchKeys records the size of a committed batch.
func AddBatchKeys(store string, puts, deletes int) {
	if puts > 0 {
		batchKeysTotal.WithLabelValues(store, "put").Add(float64(puts))
	}
	if deletes > 0 {
		batchKeysTotal.WithLabelValues(store, "delete").Add(float64(deletes))
	}
}
