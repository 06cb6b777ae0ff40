package dto

import tryon_uc "tryon-web/internal/usecase/tryon"

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// StateResponse answers JSON clients of the form endpoints and the polling
// endpoint.
type StateResponse struct {
	SessionID string        `json:"session_id"`
	View      tryon_uc.View `json:"state"`
	Error     string        `json:"error,omitempty"`
}

type HealthResponse struct {
	Status         string `json:"status"`
	Backend        string `json:"backend"`
	BackendMessage string `json:"backend_message,omitempty"`
}
