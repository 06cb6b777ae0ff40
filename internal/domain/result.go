package domain

import "time"

// TryOnResult mirrors the generation backend response body.
type TryOnResult struct {
	Success     bool   `json:"success"`
	ResultImage string `json:"result_image,omitempty"`
	Message     string `json:"message"`
}

// HasImage reports whether the result carries a renderable image.
func (r *TryOnResult) HasImage() bool {
	return r != nil && r.Success && r.ResultImage != ""
}

type MutationStatus string

const (
	StatusIdle    MutationStatus = "idle"
	StatusPending MutationStatus = "pending"
	StatusSuccess MutationStatus = "success"
	StatusFailed  MutationStatus = "failed"
)

type TryOnEvent struct {
	SessionID string         `json:"session_id"`
	Status    MutationStatus `json:"status"`
	Message   string         `json:"message,omitempty"`
	At        time.Time      `json:"at"`
}

const (
	KafkaTopicEvents     = "tryon-events"
	DefaultFailureText   = "Failed to generate try-on result"
	ResultFilenamePrefix = "virtual-tryon-result-"
)
