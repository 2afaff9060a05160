package services

import (
	"context"
	"errors"
	"strings"

	"github.com/kardianos/service"
)

// userController controls per-user services and works without root.
type userController struct{}

// program satisfies service.Interface; the controller never runs a service itself.
type program struct{}

func (program) Start(_ service.Service) error { return nil }

func (program) Stop(_ service.Service) error { return nil }

func (userController) load(unit string) (service.Service, error) {
	return service.New(program{}, &service.Config{
		Name:   strings.TrimSuffix(unit, ".service"),
		Option: service.KeyValue{"UserService": true},
	})
}

func (c userController) Start(_ context.Context, unit string) error {
	svc, err := c.load(unit)
	if err != nil {
		return err
	}

	return svc.Start()
}

func (c userController) Stop(_ context.Context, unit string) error {
	svc, err := c.load(unit)
	if err != nil {
		return err
	}

	err = svc.Stop()
	if err != nil && !errors.Is(err, service.ErrNotInstalled) {
		return err
	}

	return nil
}

func (c userController) Status(_ context.Context, unit string) (Status, error) {
	svc, err := c.load(unit)
	if err != nil {
		return StatusUnknown, err
	}

	st, err := svc.Status()
	if err != nil {
		// A service that isn't installed can't be running.
		if errors.Is(err, service.ErrNotInstalled) {
			return StatusStopped, nil
		}

		return StatusUnknown, err
	}

	switch st {
	case service.StatusRunning:
		return StatusRunning, nil
	case service.StatusStopped:
		return StatusStopped, nil
	default:
		return StatusUnknown, nil
	}
}

// NewController returns the Controller for the given mode.
func NewController(mode Mode) Controller {
	if mode == ModePrivileged {
		return systemdController{}
	}

	return userController{}
}
