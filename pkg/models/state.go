package models

import "time"

// LoadState is the lifecycle state of one sport's data set inside a catalog
type LoadState string

const (
	StateNotLoaded LoadState = "not_loaded"
	StateLoading   LoadState = "loading"
	StateLoaded    LoadState = "loaded"
	StateFailed    LoadState = "failed"
)

// LoadEvent is emitted on every load state transition
type LoadEvent struct {
	Sport      Sport     `json:"sport"`
	State      LoadState `json:"state"`
	Records    int       `json:"records"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms,omitempty"`
	At         time.Time `json:"at"`
}

// SportStatus describes a registered sport's data set for status endpoints
type SportStatus struct {
	Sport       Sport     `json:"sport"`
	DisplayName string    `json:"display_name"`
	State       LoadState `json:"state"`
	Records     int       `json:"records"`
	Legacy      bool      `json:"legacy"`
	Error       string    `json:"error,omitempty"`
}

// ErrorResponse is the JSON error body for every HTTP endpoint
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
