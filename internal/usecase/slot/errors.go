package slot

import "errors"

var ErrPreviewUnavailable = errors.New("preview unavailable")
