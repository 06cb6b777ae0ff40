package slot

import (
	"context"

	"tryon-web/internal/domain"
)

type previewRepository interface {
	Put(ctx context.Context, file *domain.File) (domain.PreviewRef, error)
	Release(ctx context.Context, ref domain.PreviewRef) error
}
