package mutation

import "errors"

var (
	ErrAlreadyPending = errors.New("submission already pending")
	ErrPanic          = errors.New("submission panicked")
)
