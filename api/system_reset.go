package api

import (
	"time"
)

// SystemReset defines the parameters of a factory reset request.
type SystemReset struct {
	// Language used for messages shown to the requesting client.
	Language string `json:"language" yaml:"language"`
}

// SystemResetState represents the state of the current, or last, factory reset.
type SystemResetState struct {
	ID        string    `json:"id"         yaml:"id"`
	Phase     string    `json:"phase"      yaml:"phase"`
	Mode      string    `json:"mode"       yaml:"mode"`
	Error     string    `json:"error"      yaml:"error"`
	Operation string    `json:"operation"  yaml:"operation"`
	StartedAt time.Time `json:"started_at" yaml:"started_at"`
}

// Operation represents the progress indicator of a long running request.
type Operation struct {
	ID      string `json:"id"      yaml:"id"`
	Message string `json:"message" yaml:"message"`
	Done    bool   `json:"done"    yaml:"done"`
}
