package usecase

import (
	"context"
	"fmt"
	"time"

	"share-worker/internal/contextkeys"
	"share-worker/internal/core/domain"
	"share-worker/internal/core/port"
)

// RequestShareUseCase accepts a share request from the item owner and queues
// it for the batch worker.
type RequestShareUseCase struct {
	store     port.RecordStorePort
	publisher port.ShareEventPublisherPort
	now       func() time.Time
}

func NewRequestShareUseCase(store port.RecordStorePort, publisher port.ShareEventPublisherPort) *RequestShareUseCase {
	return &RequestShareUseCase{
		store:     store,
		publisher: publisher,
		now:       time.Now,
	}
}

func (uc *RequestShareUseCase) Execute(ctx context.Context, itemID, userID, requestID string) (*domain.ShareEventMessage, error) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{
		"use_case":   "RequestShare",
		"item_id":    itemID,
		"user_id":    userID,
		"request_id": requestID,
	})

	item, found, err := uc.store.GetItem(ctx, itemID)
	if err != nil {
		logger.Error("Failed to read item", err, nil)
		return nil, fmt.Errorf("failed to read item %s: %w", itemID, err)
	}
	if !found {
		return nil, domain.ErrItemNotFound
	}
	if item.OwnerUserID != userID {
		logger.Warn("Share requested by a user who does not own the item", nil)
		return nil, domain.ErrOwnershipMismatch
	}

	msg := domain.ShareEventMessage{
		Type:      domain.ShareEventType,
		UserID:    userID,
		ItemID:    itemID,
		Timestamp: uc.now().UTC().Format(time.RFC3339Nano),
		RequestID: requestID,
	}

	if err := uc.publisher.PublishShareEvent(ctx, msg); err != nil {
		logger.Error("Failed to enqueue share event", err, nil)
		return nil, fmt.Errorf("failed to enqueue share event: %w", err)
	}

	logger.Info("Share event queued", nil)
	return &msg, nil
}
