package reset

import (
	"errors"
)

var (
	// ErrResetInProgress is returned when starting a reset while another one is running.
	ErrResetInProgress = errors.New("a factory reset is already in progress")

	// ErrAlreadyStarted is returned when running a session twice.
	ErrAlreadyStarted = errors.New("reset session was already started")
)

// AbortError is returned when the managed services didn't stop.
type AbortError struct {
	Result StopResult
}

func (e *AbortError) Error() string {
	return "managed services didn't stop: " + e.Result.String()
}

// InstallError is returned when reinstalling the bundled components fails.
type InstallError struct {
	Step      string
	Component string
	Err       error
}

func (e *InstallError) Error() string {
	if e.Component != "" {
		return "failed to " + e.Step + " " + e.Component + ": " + e.Err.Error()
	}

	return "failed to " + e.Step + ": " + e.Err.Error()
}

func (e *InstallError) Unwrap() error {
	return e.Err
}

// ConfigError is returned when a configuration store can't be read, cleared or restored.
type ConfigError struct {
	Store string
	Err   error
}

func (e *ConfigError) Error() string {
	return "configuration store " + e.Store + ": " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
