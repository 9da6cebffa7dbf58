package actuator

import "context"

// Port is the actuation boundary. One method per subsystem; each call reports
// success or failure independently and must be safe to repeat.
type Port interface {
	// ApplyPowerPlan activates the OS power plan with the given identifier.
	ApplyPowerPlan(ctx context.Context, id string) error
	// ApplyGpuLimit caps GPU board power and optionally locks core clocks
	// ("min,max").
	ApplyGpuLimit(ctx context.Context, watts int, clock string) error
	// ResetGpuLimit clears GPU power and clock caps back to vendor defaults.
	ResetGpuLimit(ctx context.Context) error
	// SwitchFanProfile activates a named fan-curve profile, restarting the
	// fan-control application only when the profile actually changes.
	SwitchFanProfile(ctx context.Context, name string) error
	// SetPauseFlag creates or removes the training pause flag.
	SetPauseFlag(on bool) error
}
