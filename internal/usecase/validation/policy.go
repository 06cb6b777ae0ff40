package validation

import (
	"fmt"

	"tryon-web/internal/domain"

	"github.com/go-playground/validator/v10"
)

// Policy decides which uploads are acceptable. A zero MaxWidth and
// MaxHeight disables the dimension check.
type Policy struct {
	MaxSize      int64    `validate:"gt=0"`
	AllowedTypes []string `validate:"min=1,dive,required"`
	MaxWidth     int      `validate:"gte=0"`
	MaxHeight    int      `validate:"gte=0"`
}

func DefaultPolicy() Policy {
	types := make([]string, len(domain.DefaultAllowedTypes))
	copy(types, domain.DefaultAllowedTypes)

	return Policy{
		MaxSize:      domain.DefaultMaxUploadSize,
		AllowedTypes: types,
		MaxWidth:     domain.DefaultMaxWidth,
		MaxHeight:    domain.DefaultMaxHeight,
	}
}

func (p Policy) Validate() error {
	if err := validator.New().Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}
	return nil
}

func (p Policy) allows(mimeType string) bool {
	for _, t := range p.AllowedTypes {
		if t == mimeType {
			return true
		}
	}
	return false
}

func (p Policy) checksDimensions() bool {
	return p.MaxWidth > 0 || p.MaxHeight > 0
}
