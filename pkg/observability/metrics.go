// Package observability exposes Prometheus metrics for the persistence core.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	repositoryOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookkeeper_repository_operations_total",
		Help: "Total number of repository operations",
	}, []string{"backend", "entity", "operation", "result"})

	repositoryOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bookkeeper_repository_operation_duration_seconds",
		Help:    "Duration of repository operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend", "entity", "operation"})

	sequenceSwapConflictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookkeeper_sequence_swap_conflicts_total",
		Help: "Count of lost compare-and-swap races on numbering sequences",
	}, []string{"backend", "sequence"})

	dueJobsDispatchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bookkeeper_due_jobs_dispatched_total",
		Help: "Count of due jobs handed to consumers",
	}, []string{"event_type", "result"})
)

// ObserveRepositoryOperation records one repository call.
func ObserveRepositoryOperation(backend, entity, operation string, start time.Time, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	repositoryOperationsTotal.WithLabelValues(backend, entity, operation, result).Inc()
	repositoryOperationDuration.WithLabelValues(backend, entity, operation).Observe(time.Since(start).Seconds())
}

// ObserveSequenceConflict records a lost numbering swap.
func ObserveSequenceConflict(backend, sequence string) {
	sequenceSwapConflictsTotal.WithLabelValues(backend, sequence).Inc()
}

// ObserveJobDispatch records a due job handed to its consumer.
func ObserveJobDispatch(eventType, result string) {
	dueJobsDispatchedTotal.WithLabelValues(eventType, result).Inc()
}
