package preview

import "errors"

var (
	ErrPreviewNotFound = errors.New("preview not found")
	ErrStorageError    = errors.New("storage error")
	ErrEmptyPreview    = errors.New("empty preview data")
)
