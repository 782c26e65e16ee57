package usecases_port

import (
	"context"

	"share-worker/internal/core/domain"
)

type RequestShareUseCase interface {
	Execute(ctx context.Context, itemID, userID, requestID string) (*domain.ShareEventMessage, error)
}
