package services

import (
	"context"

	"github.com/veilnet/veild/internal/systemd"
)

// systemdController controls system units, which requires root.
type systemdController struct{}

func (systemdController) Start(ctx context.Context, unit string) error {
	return systemd.StartUnit(ctx, unit)
}

func (systemdController) Stop(ctx context.Context, unit string) error {
	return systemd.StopUnit(ctx, unit)
}

func (systemdController) Status(ctx context.Context, unit string) (Status, error) {
	state, err := systemd.UnitState(ctx, unit)
	if err != nil {
		return StatusUnknown, err
	}

	switch state {
	case "active", "activating", "deactivating", "reloading", "refreshing":
		return StatusRunning, nil
	case "inactive", "failed":
		return StatusStopped, nil
	default:
		return StatusUnknown, nil
	}
}
