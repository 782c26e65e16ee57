package port

import "context"

const (
	MetricValidationErrors     = "ValidationErrors"
	MetricItemNotFound         = "ItemNotFound"
	MetricShareEventsProcessed = "ShareEventsProcessed"
	MetricBatchSize            = "BatchSize"
	MetricFailedRecords        = "FailedRecords"
	MetricSuccessfulRecords    = "SuccessfulRecords"
	MetricOwnershipMismatches  = "OwnershipMismatches"
	MetricStoreErrors          = "StoreErrors"
)

// Counters maps a metric name to its value.
type Counters map[string]int64

// MetricsPort is the observability sink. Emission must never fail a batch.
type MetricsPort interface {
	Publish(ctx context.Context, counters Counters)
	Snapshot() Counters
}
