// Package arbiter holds the mode state machine.
//
// The arbiter consumes one Signals observation per tick, applies debounce so a
// transition only commits after the driving signal has held for MinSamples
// consecutive ticks, and resolves priority between competing signals: Gaming
// preempts Training, Training preempts Idle. It is pure computation with no
// side effects; actuation is the orchestrator's job.
package arbiter

import (
	"governor/internal/posture"
)

// Trigger names the signal edge that committed a transition.
type Trigger string

const (
	TriggerGameDetected     Trigger = "game_detected"
	TriggerGameEnded        Trigger = "game_ended"
	TriggerTrainingDetected Trigger = "training_detected"
	TriggerTrainingEnded    Trigger = "training_ended"
)

// Decision is the arbiter's per-tick output.
type Decision struct {
	Mode    posture.Mode
	From    posture.Mode
	Changed bool
	Trigger Trigger
}

// Arbiter tracks the current mode and the four per-direction debounce counters.
type Arbiter struct {
	minSamples int
	mode       posture.Mode

	intoGame      int
	outOfGame     int
	intoTraining  int
	outOfTraining int
}

// New returns an arbiter starting in Idle with all counters at zero.
func New(minSamples int) *Arbiter {
	if minSamples < 1 {
		minSamples = 1
	}
	return &Arbiter{minSamples: minSamples, mode: posture.ModeIdle}
}

// Mode returns the currently committed mode.
func (a *Arbiter) Mode() posture.Mode { return a.mode }

// Seed sets the committed mode without a debounce window and zeroes all
// counters. Used at startup to resume a posture confirmed by both a durable
// marker and a live observation; leaving that mode still takes the full
// debounce.
func (a *Arbiter) Seed(mode posture.Mode) {
	a.mode = mode
	a.intoGame = 0
	a.outOfGame = 0
	a.intoTraining = 0
	a.outOfTraining = 0
}

// Counters reports the debounce counters as (intoGame, outOfGame, intoTraining,
// outOfTraining); used for status output.
func (a *Arbiter) Counters() (int, int, int, int) {
	return a.intoGame, a.outOfGame, a.intoTraining, a.outOfTraining
}

// Step feeds one tick's signals through the state machine and returns the
// resulting decision. A single observation of the opposing signal resets that
// direction's counter, so slow oscillation never accumulates partial credit on
// both sides at once.
func (a *Arbiter) Step(signals posture.Signals) Decision {
	a.count(signals)

	from := a.mode
	switch {
	// Highest priority: a sustained game signal wins from any mode, and the
	// training signal cannot veto it.
	case a.mode != posture.ModeGaming && a.intoGame >= a.minSamples:
		return a.commit(from, posture.ModeGaming, TriggerGameDetected)

	case a.mode == posture.ModeGaming && a.outOfGame >= a.minSamples:
		// Fallback state depends on whether training is live right now.
		target := posture.ModeIdle
		if signals.Training {
			target = posture.ModeTraining
		}
		return a.commit(from, target, TriggerGameEnded)

	case a.mode == posture.ModeIdle && a.intoTraining >= a.minSamples:
		return a.commit(from, posture.ModeTraining, TriggerTrainingDetected)

	case a.mode == posture.ModeTraining && a.outOfTraining >= a.minSamples:
		return a.commit(from, posture.ModeIdle, TriggerTrainingEnded)
	}

	return Decision{Mode: a.mode, From: from}
}

func (a *Arbiter) count(signals posture.Signals) {
	if signals.Game {
		a.outOfGame = 0
		if a.mode != posture.ModeGaming {
			a.intoGame++
		}
	} else {
		a.intoGame = 0
		if a.mode == posture.ModeGaming {
			a.outOfGame++
		}
	}

	if signals.Training {
		a.outOfTraining = 0
		if a.mode != posture.ModeTraining {
			a.intoTraining++
		}
	} else {
		a.intoTraining = 0
		if a.mode == posture.ModeTraining {
			a.outOfTraining++
		}
	}
}

func (a *Arbiter) commit(from, to posture.Mode, trigger Trigger) Decision {
	a.mode = to
	a.intoGame = 0
	a.outOfGame = 0
	a.intoTraining = 0
	a.outOfTraining = 0
	return Decision{Mode: to, From: from, Changed: from != to, Trigger: trigger}
}
