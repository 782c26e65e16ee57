package port

import (
	"context"

	"share-worker/internal/core/domain"
)

// RecordStorePort is the durable store holding items and activity records.
type RecordStorePort interface {
	// GetItem reports found=false when the item does not exist.
	GetItem(ctx context.Context, itemID string) (item *domain.Item, found bool, err error)

	// IncrementShareCount atomically adds one to the item's share count and marks
	// it public, only if the stored owner equals expectedOwnerUserID. A failed
	// condition returns domain.ErrOwnershipMismatch; anything else is a *domain.StoreError.
	IncrementShareCount(ctx context.Context, itemID, expectedOwnerUserID string) error

	// PutActivity writes a new activity record.
	PutActivity(ctx context.Context, record domain.ActivityRecord) error
}
