package validation

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strconv"
	"strings"

	"tryon-web/internal/domain"

	_ "golang.org/x/image/webp"
)

const bytesPerMB = 1024 * 1024

// Validate checks type, then size, then dimensions, and returns the first
// rejection as an *Error.
func Validate(file *domain.File, policy Policy) error {
	if file == nil {
		return nil
	}

	if !policy.allows(file.MimeType) {
		return reject(ErrInvalidFileType,
			"Invalid file type. Allowed types: "+strings.Join(policy.AllowedTypes, ", "))
	}

	if file.Size > policy.MaxSize {
		return reject(ErrFileTooLarge,
			"File size too large. Maximum size: "+formatMB(policy.MaxSize)+"MB")
	}

	if policy.checksDimensions() {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(file.Data))
		if err != nil {
			return reject(ErrDimensionsUnknown, "Unable to read image dimensions")
		}
		if tooLarge(cfg.Width, policy.MaxWidth) || tooLarge(cfg.Height, policy.MaxHeight) {
			return reject(ErrDimensionsTooLarge,
				fmt.Sprintf("Image dimensions too large. Maximum: %dx%d", policy.MaxWidth, policy.MaxHeight))
		}
	}

	return nil
}

func tooLarge(actual, limit int) bool {
	return limit > 0 && actual > limit
}

func formatMB(size int64) string {
	return strconv.FormatFloat(float64(size)/bytesPerMB, 'f', -1, 64)
}
