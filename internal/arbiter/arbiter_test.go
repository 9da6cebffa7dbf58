package arbiter

import (
	"testing"

	"governor/internal/posture"
)

func step(t *testing.T, a *Arbiter, game, training bool) Decision {
	t.Helper()
	return a.Step(posture.Signals{Game: game, Training: training})
}

func TestGameCommitsExactlyAtMinSamples(t *testing.T) {
	a := New(3)

	for i := 0; i < 3; i++ {
		if d := step(t, a, false, false); d.Changed {
			t.Fatalf("tick %d: unexpected transition to %s", i, d.Mode)
		}
	}

	if d := step(t, a, true, false); d.Changed {
		t.Fatalf("1st true tick must not transition")
	}
	if d := step(t, a, true, false); d.Changed {
		t.Fatalf("2nd true tick must not transition")
	}
	d := step(t, a, true, false)
	if !d.Changed || d.Mode != posture.ModeGaming {
		t.Fatalf("3rd true tick: decision = %+v, want transition to gaming", d)
	}
	if d.Trigger != TriggerGameDetected {
		t.Fatalf("trigger = %s, want %s", d.Trigger, TriggerGameDetected)
	}
}

func TestFlickerShorterThanMinSamplesNeverChangesMode(t *testing.T) {
	a := New(3)

	// Two-tick flickers of every signal combination.
	sequences := [][]posture.Signals{
		{{Game: true}, {Game: true}, {}},
		{{Training: true}, {Training: true}, {}},
		{{Game: true, Training: true}, {}, {}},
	}
	for _, seq := range sequences {
		for _, signals := range seq {
			if d := a.Step(signals); d.Changed {
				t.Fatalf("flicker caused transition to %s", d.Mode)
			}
		}
		if a.Mode() != posture.ModeIdle {
			t.Fatalf("mode drifted to %s", a.Mode())
		}
	}
}

func TestGamePriorityOverridesTraining(t *testing.T) {
	a := New(2)

	// Establish training first.
	step(t, a, false, true)
	d := step(t, a, false, true)
	if !d.Changed || d.Mode != posture.ModeTraining {
		t.Fatalf("expected training mode, got %+v", d)
	}

	// A sustained game signal wins even while training stays true.
	step(t, a, true, true)
	d = step(t, a, true, true)
	if !d.Changed || d.Mode != posture.ModeGaming {
		t.Fatalf("expected gaming to preempt training, got %+v", d)
	}
}

func TestLeavingGamingFallsBackByLiveTrainingSignal(t *testing.T) {
	cases := []struct {
		name     string
		training bool
		want     posture.Mode
	}{
		{name: "training live", training: true, want: posture.ModeTraining},
		{name: "nothing live", training: false, want: posture.ModeIdle},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := New(2)
			step(t, a, true, false)
			step(t, a, true, false)
			if a.Mode() != posture.ModeGaming {
				t.Fatalf("setup failed, mode = %s", a.Mode())
			}

			step(t, a, false, tc.training)
			d := step(t, a, false, tc.training)
			if !d.Changed || d.Mode != tc.want {
				t.Fatalf("fallback = %+v, want %s", d, tc.want)
			}
			if d.Trigger != TriggerGameEnded {
				t.Fatalf("trigger = %s, want %s", d.Trigger, TriggerGameEnded)
			}
		})
	}
}

func TestOpposingObservationResetsCounter(t *testing.T) {
	a := New(3)
	step(t, a, true, false)
	step(t, a, true, false)

	// Game established.
	if d := step(t, a, true, false); !d.Changed {
		t.Fatalf("expected gaming commit")
	}

	// Game drops for 2 of the required 3 samples, then returns.
	step(t, a, false, false)
	step(t, a, false, false)
	if d := step(t, a, true, false); d.Changed {
		t.Fatalf("partial out-of-game run must not transition: %+v", d)
	}
	if a.Mode() != posture.ModeGaming {
		t.Fatalf("mode = %s, want gaming", a.Mode())
	}
	_, outOfGame, _, _ := a.Counters()
	if outOfGame != 0 {
		t.Fatalf("outOfGame counter = %d, want reset to 0", outOfGame)
	}

	// The full run is required from scratch.
	step(t, a, false, false)
	step(t, a, false, false)
	d := step(t, a, false, false)
	if !d.Changed || d.Mode != posture.ModeIdle {
		t.Fatalf("expected idle after full out-of-game run, got %+v", d)
	}
}

func TestTrainingEndsBackToIdle(t *testing.T) {
	a := New(2)
	step(t, a, false, true)
	step(t, a, false, true)
	if a.Mode() != posture.ModeTraining {
		t.Fatalf("setup failed, mode = %s", a.Mode())
	}

	step(t, a, false, false)
	d := step(t, a, false, false)
	if !d.Changed || d.Mode != posture.ModeIdle {
		t.Fatalf("expected idle, got %+v", d)
	}
	if d.Trigger != TriggerTrainingEnded {
		t.Fatalf("trigger = %s, want %s", d.Trigger, TriggerTrainingEnded)
	}
}

func TestMinSamplesOneCommitsImmediately(t *testing.T) {
	a := New(1)
	d := step(t, a, true, false)
	if !d.Changed || d.Mode != posture.ModeGaming {
		t.Fatalf("min_samples=1 should commit on first observation, got %+v", d)
	}
}
