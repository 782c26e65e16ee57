package usecase

import (
	"context"
	"time"

	"share-worker/internal/contextkeys"
	"share-worker/internal/core/domain"
	"share-worker/internal/core/port"

	"github.com/google/uuid"
)

// RecordShareActivityUseCase appends "item shared" entries to a user's activity feed.
type RecordShareActivityUseCase struct {
	store port.RecordStorePort
	now   func() time.Time
	newID func() uuid.UUID
}

func NewRecordShareActivityUseCase(store port.RecordStorePort) *RecordShareActivityUseCase {
	return &RecordShareActivityUseCase{
		store: store,
		now:   time.Now,
		newID: uuid.New,
	}
}

func (uc *RecordShareActivityUseCase) CreateShareActivity(ctx context.Context, in domain.ShareActivityInput) (uuid.UUID, error) {
	activityID := uc.newID()

	record := domain.ActivityRecord{
		ActivityID:   activityID,
		OwnerUserID:  in.UserID,
		ActivityType: domain.ActivityTypeItemShared,
		ItemID:       in.ItemID,
		ItemName:     in.ItemName,
		Timestamp:    in.SharedAt,
		CreatedAt:    uc.now().UTC().Format(time.RFC3339Nano),
		Metadata: domain.ActivityMetadata{
			Action:    domain.ActivityActionShare,
			RequestID: in.RequestID,
		},
	}
	if record.ItemName != nil && *record.ItemName == "" {
		record.ItemName = nil
	}

	if err := uc.store.PutActivity(ctx, record); err != nil {
		return uuid.Nil, err
	}

	contextkeys.LoggerFromContext(ctx).Debug("Share activity recorded", port.Fields{
		"activity_id": activityID.String(),
		"item_id":     in.ItemID,
	})
	return activityID, nil
}
