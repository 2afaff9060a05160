// Package services manages the lifecycle of the background proxy services.
package services

import (
	"context"
	"errors"
	"slices"
	"strings"
)

// Status represents the run state of a service.
type Status string

const (
	// StatusRunning is reported while the service is up, starting or stopping.
	StatusRunning Status = "running"

	// StatusStopped is reported once the service is fully stopped.
	StatusStopped Status = "stopped"

	// StatusUnknown is reported when the state couldn't be determined.
	StatusUnknown Status = "unknown"
)

// ErrUnknownService is returned when loading an unsupported service.
var ErrUnknownService = errors.New("unknown service")

// Supported contains the list of all managed services.
var Supported = []string{"dnscrypt-proxy", "tor", "i2pd"}

// Service represents a managed background service.
type Service struct {
	Name string
	Unit string
}

// PidFile returns the name of the pid file the service writes.
func (s Service) PidFile() string {
	return s.Name + ".pid"
}

// Controller drives service units through a service manager.
type Controller interface {
	Start(ctx context.Context, unit string) error
	Stop(ctx context.Context, unit string) error
	Status(ctx context.Context, unit string) (Status, error)
}

// Load returns the named service, managed through the given unit.
func Load(name string, unit string) (Service, error) {
	if !slices.Contains(Supported, name) {
		return Service{}, ErrUnknownService
	}

	if unit == "" {
		unit = name + ".service"
	}

	if !strings.Contains(unit, ".") {
		unit += ".service"
	}

	return Service{Name: name, Unit: unit}, nil
}
