package reset

// Phase represents the progress of a factory reset.
type Phase int

const (
	// PhaseIdle is the phase of a session that wasn't started yet.
	PhaseIdle Phase = iota

	// PhaseStoppingServices is the phase stopping the managed services.
	PhaseStoppingServices

	// PhaseAborted is reached when the services didn't stop in time or the reset was interrupted.
	PhaseAborted

	// PhaseReinstalling is the phase reinstalling the bundled components.
	PhaseReinstalling

	// PhaseFailed is reached when any phase after the shutdown failed.
	PhaseFailed

	// PhaseResettingConfig is the phase clearing the configuration stores.
	PhaseResettingConfig

	// PhaseFinalizing is the phase updating the installed status.
	PhaseFinalizing

	// PhaseDone is reached when the reset completed.
	PhaseDone
)

var phaseNames = map[Phase]string{
	PhaseIdle:             "idle",
	PhaseStoppingServices: "stopping-services",
	PhaseAborted:          "aborted",
	PhaseReinstalling:     "reinstalling",
	PhaseFailed:           "failed",
	PhaseResettingConfig:  "resetting-config",
	PhaseFinalizing:       "finalizing",
	PhaseDone:             "done",
}

func (p Phase) String() string {
	name, ok := phaseNames[p]
	if !ok {
		return "unknown"
	}

	return name
}

// Terminal reports whether no further transition can happen from the phase.
func (p Phase) Terminal() bool {
	return p == PhaseAborted || p == PhaseFailed || p == PhaseDone
}

// StopResult is the outcome of the service shutdown.
type StopResult int

const (
	// StopOK means every managed service was reported stopped.
	StopOK StopResult = iota

	// StopTimedOut means the services didn't all stop before the timeout.
	StopTimedOut

	// StopInterrupted means the reset was interrupted while waiting.
	StopInterrupted
)

func (r StopResult) String() string {
	switch r {
	case StopOK:
		return "ok"
	case StopTimedOut:
		return "timed out"
	case StopInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}
