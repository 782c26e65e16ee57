package port

import (
	"context"

	"share-worker/internal/core/domain"

	"github.com/google/uuid"
)

type ActivityRecorderPort interface {
	CreateShareActivity(ctx context.Context, in domain.ShareActivityInput) (uuid.UUID, error)
}
