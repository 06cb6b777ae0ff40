package dto

import tryon_uc "tryon-web/internal/usecase/tryon"

// PageData feeds the HTML templates.
type PageData struct {
	View         tryon_uc.View
	AllowedTypes string
	MaxSizeMB    string
	PollSeconds  int
}
