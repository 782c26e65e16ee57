package port

import (
	"context"

	"share-worker/internal/core/domain"
)

type ShareEventPublisherPort interface {
	PublishShareEvent(ctx context.Context, msg domain.ShareEventMessage) error
}
