package tryon

import (
	"context"

	"tryon-web/internal/domain"
)

type previewRepository interface {
	Put(ctx context.Context, file *domain.File) (domain.PreviewRef, error)
	Get(ctx context.Context, ref domain.PreviewRef) (*domain.Preview, []byte, error)
	Release(ctx context.Context, ref domain.PreviewRef) error
}

type tryOnClient interface {
	TryOn(ctx context.Context, person, clothing *domain.File) (*domain.TryOnResult, error)
	Health(ctx context.Context) (string, error)
}

// eventPublisher must not block; transitions are reported inline.
type eventPublisher interface {
	Publish(ctx context.Context, event domain.TryOnEvent) error
}
