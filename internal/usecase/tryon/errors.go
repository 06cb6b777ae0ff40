package tryon

import "errors"

var (
	ErrNotReady          = errors.New("both images must be selected and valid")
	ErrSubmissionPending = errors.New("a try-on request is already in progress")
	ErrSessionNotFound   = errors.New("session not found")
	ErrUnknownSlot       = errors.New("unknown slot")
	ErrNoResult          = errors.New("no try-on result available")
	ErrInvalidResult     = errors.New("result image could not be decoded")
	ErrPreviewForbidden  = errors.New("preview does not belong to this session")
)
