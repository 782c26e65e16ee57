package usecases_port

import (
	"context"

	"share-worker/internal/core/domain"
)

// ProcessShareBatchUseCase never fails as a whole; per-record failures are
// carried by the report.
type ProcessShareBatchUseCase interface {
	ProcessBatch(ctx context.Context, records []domain.RawRecord) *domain.BatchReport
}
