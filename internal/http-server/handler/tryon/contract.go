package tryon

import (
	"context"

	"tryon-web/internal/domain"
	tryon_uc "tryon-web/internal/usecase/tryon"
	"tryon-web/internal/usecase/validation"
)

type tryOnUsecase interface {
	Session(id string) (*tryon_uc.Session, bool)
	Preview(ctx context.Context, sess *tryon_uc.Session, ref domain.PreviewRef) (*domain.Preview, []byte, error)
	BackendHealth(ctx context.Context) (string, error)
	Policy() validation.Policy
}
