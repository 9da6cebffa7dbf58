// Package actuator applies energy-profile directives to the real subsystems.
//
// The Port interface exposes one method per subsystem (power plan, GPU limits,
// fan profile, pause flag) so a failure in one never blocks the others and so
// the state machine can be tested against a mock. The exec-backed
// implementation shells out to the configured vendor tools with a bounded
// timeout per call; a hung tool surfaces as ErrTimeout, not a stuck loop.
package actuator
