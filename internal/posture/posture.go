// Package posture defines the operating modes and energy profiles shared by the
// governor daemon's observation, arbitration, and actuation layers.
package posture

import "strings"

// Mode identifies the workstation's current resource posture. Exactly one mode
// is active at a time; Gaming preempts Training, Training preempts Idle.
type Mode string

const (
	ModeIdle     Mode = "idle"
	ModeTraining Mode = "training"
	ModeGaming   Mode = "gaming"
)

// Modes lists every mode in ascending priority order.
func Modes() []Mode {
	return []Mode{ModeIdle, ModeTraining, ModeGaming}
}

// ParseMode maps a config or CLI mode name to a Mode.
func ParseMode(value string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeIdle:
		return ModeIdle, true
	case ModeTraining:
		return ModeTraining, true
	case ModeGaming:
		return ModeGaming, true
	default:
		return "", false
	}
}

// Gaming reports whether the mode represents interactive gaming.
func (m Mode) Gaming() bool { return m == ModeGaming }

// Paused reports whether the training workload must be suspended in this mode.
func (m Mode) Paused() bool { return m == ModeGaming }

func (m Mode) String() string { return string(m) }

// Subsystem names one of the independently actuated resources. The orchestrator
// tracks applied/pending state per subsystem so a failure in one never blocks
// the others.
type Subsystem string

const (
	SubsystemPowerPlan  Subsystem = "power_plan"
	SubsystemGPULimit   Subsystem = "gpu_limit"
	SubsystemFanProfile Subsystem = "fan_profile"
	SubsystemPauseFlag  Subsystem = "pause_flag"
)

// Subsystems lists every actuated subsystem in application order.
func Subsystems() []Subsystem {
	return []Subsystem{SubsystemPowerPlan, SubsystemGPULimit, SubsystemFanProfile, SubsystemPauseFlag}
}

// Signals carries one tick's process-presence observations.
type Signals struct {
	Game     bool
	Training bool
}

// EnergyProfile bundles the subsystem directives for one mode. Profiles are
// loaded once from configuration and never mutated at runtime.
type EnergyProfile struct {
	FanProfile    string
	PowerPlan     string
	GPUPowerWatts int
	// GPUClock is an optional "min,max" core-clock lock passed to the GPU
	// tool. Empty means no lock; combined with GPUPowerWatts == 0 the GPU
	// limits are reset to vendor defaults.
	GPUClock string
}

// ResetGPU reports whether this profile clears GPU limits instead of capping.
func (p EnergyProfile) ResetGPU() bool {
	return p.GPUPowerWatts <= 0 && strings.TrimSpace(p.GPUClock) == ""
}
