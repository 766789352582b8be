package vectorstore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationDuration tracks how long store operations take.
	// Labels: store (chromem, qdrant), operation (add, query, count)
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "steward",
			Subsystem: "vectorstore",
			Name:      "operation_duration_seconds",
			Help:      "Duration of vector store operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"store", "operation"},
	)

	// OperationsTotal counts store operations by result.
	// Labels: store, operation, result (success, error)
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "steward",
			Subsystem: "vectorstore",
			Name:      "operations_total",
			Help:      "Total number of vector store operations",
		},
		[]string{"store", "operation", "result"},
	)

	// DocumentsStored counts documents written to the store.
	// Labels: store
	DocumentsStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "steward",
			Subsystem: "vectorstore",
			Name:      "documents_stored_total",
			Help:      "Total number of documents written to the vector store",
		},
		[]string{"store"},
	)
)

// observeOperation records duration and outcome for a store operation.
func observeOperation(store, operation string, start time.Time, err error) {
	OperationDuration.WithLabelValues(store, operation).Observe(time.Since(start).Seconds())
	result := "success"
	if err != nil {
		result = "error"
	}
	OperationsTotal.WithLabelValues(store, operation, result).Inc()
}
