package services

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Mode selects how managed services are controlled.
type Mode int

const (
	// ModeUnprivileged controls user-level services.
	ModeUnprivileged Mode = iota

	// ModePrivileged controls system units through systemctl.
	ModePrivileged
)

// ErrUnknownMode is returned when parsing an unknown mode name.
var ErrUnknownMode = errors.New("unknown service control mode")

func (m Mode) String() string {
	if m == ModePrivileged {
		return "privileged"
	}

	return "unprivileged"
}

// DetectMode returns ModePrivileged when running as root.
func DetectMode() Mode {
	if unix.Geteuid() == 0 {
		return ModePrivileged
	}

	return ModeUnprivileged
}

// ParseMode parses a mode name, "auto" resolving to DetectMode.
func ParseMode(name string) (Mode, error) {
	switch name {
	case "auto", "":
		return DetectMode(), nil
	case "privileged":
		return ModePrivileged, nil
	case "unprivileged":
		return ModeUnprivileged, nil
	default:
		return 0, ErrUnknownMode
	}
}
