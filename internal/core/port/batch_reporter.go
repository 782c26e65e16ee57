package port

import (
	"context"

	"share-worker/internal/core/domain"
)

type BatchReporterPort interface {
	ReportBatch(ctx context.Context, batchID string, report *domain.BatchReport) error
}
