package domain

import "errors"

// Phase is the discrete state of the launch/update session.
type Phase string

const (
	PhaseIdle                    Phase = "idle"
	PhaseCheckingForUpdate       Phase = "checking_for_update"
	PhaseDownloading             Phase = "downloading"
	PhaseInstalling              Phase = "installing"
	PhaseReadyToLaunch           Phase = "ready_to_launch"
	PhaseLaunching               Phase = "launching"
	PhaseLauncherUpdateAvailable Phase = "launcher_update_available"
	PhaseApplyingLauncherUpdate  Phase = "applying_launcher_update"
	PhaseFailed                  Phase = "failed"
)

var ErrInvalidTransition = errors.New("invalid phase transition")

// Phases lists every phase in declaration order.
var Phases = []Phase{
	PhaseIdle,
	PhaseCheckingForUpdate,
	PhaseDownloading,
	PhaseInstalling,
	PhaseReadyToLaunch,
	PhaseLaunching,
	PhaseLauncherUpdateAvailable,
	PhaseApplyingLauncherUpdate,
	PhaseFailed,
}

// validTransitions defines the adjacency list of allowed phase transitions.
var validTransitions = map[Phase][]Phase{
	PhaseIdle:                    {PhaseCheckingForUpdate, PhaseReadyToLaunch, PhaseLauncherUpdateAvailable, PhaseFailed},
	PhaseCheckingForUpdate:       {PhaseDownloading, PhaseInstalling, PhaseLaunching, PhaseFailed},
	PhaseDownloading:             {PhaseInstalling, PhaseLaunching, PhaseIdle, PhaseFailed},
	PhaseInstalling:              {PhaseDownloading, PhaseLaunching, PhaseIdle, PhaseFailed},
	PhaseReadyToLaunch:           {PhaseCheckingForUpdate, PhaseLauncherUpdateAvailable, PhaseFailed},
	PhaseLaunching:               {PhaseIdle, PhaseFailed},
	PhaseLauncherUpdateAvailable: {PhaseApplyingLauncherUpdate, PhaseFailed},
	PhaseApplyingLauncherUpdate:  {PhaseFailed},
	PhaseFailed:                  {PhaseIdle, PhaseCheckingForUpdate},
}

// CanTransition reports whether a transition from one phase to another is valid.
func CanTransition(from, to Phase) bool {
	for _, p := range validTransitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// Valid reports whether p is one of the defined phases.
func (p Phase) Valid() bool {
	_, ok := validTransitions[p]
	return ok
}

// Running reports whether a long-running backend operation owns the session.
func (p Phase) Running() bool {
	switch p {
	case PhaseCheckingForUpdate, PhaseDownloading, PhaseInstalling, PhaseApplyingLauncherUpdate:
		return true
	default:
		return false
	}
}

// Playable reports whether RequestPlay is accepted in this phase.
func (p Phase) Playable() bool {
	return p == PhaseIdle || p == PhaseReadyToLaunch || p == PhaseFailed
}

// Cancellable reports whether Cancel is accepted in this phase.
func (p Phase) Cancellable() bool {
	return p == PhaseDownloading || p == PhaseInstalling
}

// ParsePhase converts a raw value into a Phase.
func ParsePhase(raw string) (Phase, bool) {
	p := Phase(raw)
	if !p.Valid() {
		return "", false
	}
	return p, true
}
