package tryonapi

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

var (
	ErrMissingFile     = errors.New("both person and clothing images are required")
	ErrTimeout         = errors.New("request timed out")
	ErrNetwork         = errors.New("network error")
	ErrInvalidResponse = errors.New("invalid response from try-on service")
)

// StatusError is returned for any non-2xx answer. Body is kept for logs
// and never shown to the user.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status code %d", e.StatusCode)
}

type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return "request timed out after " + strconv.FormatFloat(e.After.Seconds(), 'f', -1, 64) + "s"
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}
