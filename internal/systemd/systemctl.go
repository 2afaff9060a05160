package systemd

import (
	"context"
	"strings"

	"github.com/lxc/incus/v6/shared/subprocess"
)

// StartUnit starts the given units.
func StartUnit(ctx context.Context, units ...string) error {
	args := []string{"start"}
	args = append(args, units...)

	_, err := subprocess.RunCommandContext(ctx, "systemctl", args...)
	if err != nil {
		return err
	}

	return nil
}

// StopUnit stops the given units without waiting for the stop jobs to complete.
func StopUnit(ctx context.Context, units ...string) error {
	args := []string{"stop", "--no-block"}
	args = append(args, units...)

	_, err := subprocess.RunCommandContext(ctx, "systemctl", args...)
	if err != nil {
		return err
	}

	return nil
}

// UnitState returns the active state of a unit, as reported by "systemctl is-active".
func UnitState(ctx context.Context, unit string) (string, error) {
	// is-active exits non-zero for anything but an active unit, rely on its output instead.
	output, err := subprocess.RunCommandContext(ctx, "systemctl", "is-active", unit)

	state := strings.TrimSpace(output)
	if state == "" && err != nil {
		return "", err
	}

	return state, nil
}
