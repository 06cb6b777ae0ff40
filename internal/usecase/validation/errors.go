package validation

import "errors"

var (
	ErrInvalidFileType    = errors.New("invalid file type")
	ErrFileTooLarge       = errors.New("file too large")
	ErrDimensionsUnknown  = errors.New("unable to read image dimensions")
	ErrDimensionsTooLarge = errors.New("image dimensions too large")
	ErrInvalidPolicy      = errors.New("invalid validation policy")
)

// Error is a rejection carrying the message shown next to the upload area.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func reject(kind error, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Message returns the user-facing text of a rejection, or err.Error() for
// anything else.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var vErr *Error
	if errors.As(err, &vErr) {
		return vErr.Message
	}
	return err.Error()
}
