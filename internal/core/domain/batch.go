package domain

import "sort"

type OutcomeStatus int

const (
	OutcomeProcessed OutcomeStatus = iota + 1
	OutcomeSkipped
	OutcomeFailed
)

func (s OutcomeStatus) String() string {
	switch s {
	case OutcomeProcessed:
		return "processed"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FailureKind classifies a failed record. Permanent failures will fail again
// on redelivery; the classification is informational only.
type FailureKind string

const (
	FailureMalformed  FailureKind = "malformed"
	FailureValidation FailureKind = "validation"
	FailureOwnership  FailureKind = "ownership_mismatch"
	FailureStore      FailureKind = "store"
	FailureCancelled  FailureKind = "cancelled"
	FailurePanic      FailureKind = "panic"
)

func (k FailureKind) Permanent() bool {
	switch k {
	case FailureMalformed, FailureValidation, FailureOwnership:
		return true
	default:
		return false
	}
}

const SkipReasonItemNotFound = "item_not_found"

// RecordOutcome is the result of processing one record.
type RecordOutcome struct {
	RecordID   string
	Status     OutcomeStatus
	SkipReason string
	Kind       FailureKind
	Err        error
	ActivityID string
}

// BatchReport summarizes a batch. Skipped records count as succeeded.
type BatchReport struct {
	Total           int
	Succeeded       int
	FailedRecordIDs map[string]struct{}
	Outcomes        []RecordOutcome
}

func NewBatchReport(outcomes []RecordOutcome) *BatchReport {
	failed := make(map[string]struct{})
	for _, o := range outcomes {
		if o.Status == OutcomeFailed {
			failed[o.RecordID] = struct{}{}
		}
	}

	return &BatchReport{
		Total:           len(outcomes),
		Succeeded:       len(outcomes) - len(failed),
		FailedRecordIDs: failed,
		Outcomes:        outcomes,
	}
}

func (r *BatchReport) IsFailed(recordID string) bool {
	_, ok := r.FailedRecordIDs[recordID]
	return ok
}

// FailedIDs returns the failed record ids in sorted order.
func (r *BatchReport) FailedIDs() []string {
	ids := make([]string, 0, len(r.FailedRecordIDs))
	for id := range r.FailedRecordIDs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *BatchReport) Count(status OutcomeStatus) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

func (r *BatchReport) CountKind(kind FailureKind) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == OutcomeFailed && o.Kind == kind {
			n++
		}
	}
	return n
}
