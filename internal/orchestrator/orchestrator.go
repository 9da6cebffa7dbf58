// Package orchestrator drives the observe/arbitrate/actuate tick loop.
//
// One Loop owns the daemon lifecycle: every poll interval it observes workload
// signals, feeds them to the mode state machine, and on a committed transition
// applies the target mode's energy profile. Subsystems are actuated
// independently; a failed subsystem stays pending and is retried on subsequent
// ticks without re-actuating the ones that already succeeded.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"governor/internal/actuator"
	"governor/internal/arbiter"
	"governor/internal/config"
	"governor/internal/flagfile"
	"governor/internal/history"
	"governor/internal/logging"
	"governor/internal/posture"
	"governor/internal/procwatch"
)

// Sampler receives one callback per tick; implementations decide whether the
// tick is due for a telemetry sample.
type Sampler interface {
	Sample(ctx context.Context, tick uint64, mode posture.Mode, signals posture.Signals)
}

// Status is a point-in-time snapshot of the loop for the status command.
type Status struct {
	RunID          string              `json:"run_id"`
	Mode           posture.Mode        `json:"mode"`
	Signals        posture.Signals     `json:"signals"`
	Tick           uint64              `json:"tick"`
	Pending        []posture.Subsystem `json:"pending,omitempty"`
	StartedAt      time.Time           `json:"started_at"`
	LastTransition time.Time           `json:"last_transition,omitempty"`
	LastTrigger    string              `json:"last_trigger,omitempty"`
}

// Loop coordinates the observer, arbiter, and actuator.
type Loop struct {
	cfg      *config.Config
	observer *procwatch.Observer
	arb      *arbiter.Arbiter
	port     actuator.Port
	flags    *flagfile.Store
	logger   *slog.Logger

	store   *history.Store
	sampler Sampler
	runID   string

	mu             sync.Mutex
	tick           uint64
	signals        posture.Signals
	pending        map[posture.Subsystem]bool
	startedAt      time.Time
	lastTransition time.Time
	lastTrigger    arbiter.Trigger
}

// New builds a loop over the given collaborators. History and telemetry are
// optional; see WithHistory and WithSampler.
func New(cfg *config.Config, observer *procwatch.Observer, port actuator.Port, flags *flagfile.Store, logger *slog.Logger) *Loop {
	return &Loop{
		cfg:      cfg,
		observer: observer,
		arb:      arbiter.New(cfg.Workflow.MinSamples),
		port:     port,
		flags:    flags,
		logger:   logging.NewComponentLogger(logger, "orchestrator"),
		pending:  make(map[posture.Subsystem]bool),
	}
}

// WithHistory enables transition persistence.
func (l *Loop) WithHistory(store *history.Store, runID string) *Loop {
	l.store = store
	l.runID = runID
	return l
}

// WithSampler enables periodic telemetry sampling.
func (l *Loop) WithSampler(s Sampler) *Loop {
	l.sampler = s
	return l
}

// Bootstrap establishes the starting posture before the first tick. A
// game_mode.flag surviving from a previous run resumes Gaming directly when a
// live game process confirms it, so a daemon restart mid-game does not drop
// the pause flag or re-run the full debounce from Idle. Without that
// confirmation any leftover flags are stale state, not signals; the idle
// baseline is applied and clears them.
func (l *Loop) Bootstrap(ctx context.Context) error {
	l.mu.Lock()
	l.startedAt = time.Now()
	for _, subsystem := range posture.Subsystems() {
		l.pending[subsystem] = true
	}
	l.mu.Unlock()

	mode := posture.ModeIdle
	if marked, err := l.flags.GameModePresent(); err == nil && marked {
		if signals, err := l.observer.Observe(ctx); err == nil && signals.Game {
			mode = posture.ModeGaming
			l.mu.Lock()
			l.signals = signals
			l.arb.Seed(mode)
			l.mu.Unlock()
		}
	}

	if _, ok := l.cfg.ProfileFor(mode); !ok {
		return fmt.Errorf("no energy profile configured for mode %s", mode)
	}

	if mode == posture.ModeGaming {
		l.logger.Info("resuming gaming posture from previous run", logging.String(logging.FieldRunID, l.runID))
	} else {
		l.logger.Info("applying idle baseline", logging.String(logging.FieldRunID, l.runID))
	}
	l.applyPending(ctx, mode)
	return nil
}

// Run executes the tick loop until the context is canceled. The in-flight tick
// is finished before Run returns.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.Bootstrap(ctx); err != nil {
		return err
	}

	interval := time.Duration(l.cfg.Workflow.PollInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	l.logger.Info("poll loop started",
		logging.Duration("interval", interval),
		logging.Int("min_samples", l.cfg.Workflow.MinSamples))

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("poll loop stopping")
			return ctx.Err()
		case <-ticker.C:
			l.Tick(ctx)
		}
	}
}

// Tick performs one observe/arbitrate/actuate pass.
func (l *Loop) Tick(ctx context.Context) arbiter.Decision {
	// Observe logs enumeration failures itself and falls back to the previous
	// signals, so the state machine keeps running through transient errors.
	signals, _ := l.observer.Observe(ctx)

	l.mu.Lock()
	decision := l.arb.Step(signals)
	l.tick++
	tick := l.tick
	l.signals = signals
	if decision.Changed {
		l.lastTransition = time.Now()
		l.lastTrigger = decision.Trigger
		for _, subsystem := range posture.Subsystems() {
			l.pending[subsystem] = true
		}
	}
	hasPending := len(l.pending) > 0
	l.mu.Unlock()

	if decision.Changed {
		l.logger.Info("mode transition",
			logging.String("from", string(decision.From)),
			logging.String(logging.FieldMode, string(decision.Mode)),
			logging.String("trigger", string(decision.Trigger)))
	}

	var outcomes map[posture.Subsystem]string
	if hasPending || decision.Changed {
		outcomes = l.applyPending(ctx, decision.Mode)
	}

	if decision.Changed {
		l.record(ctx, decision, outcomes)
	}

	if l.sampler != nil {
		l.sampler.Sample(ctx, tick, decision.Mode, signals)
	}
	return decision
}

// applyPending actuates every pending subsystem against the mode's profile.
// Failures are logged, left pending for the next tick, and never block the
// remaining subsystems.
func (l *Loop) applyPending(ctx context.Context, mode posture.Mode) map[posture.Subsystem]string {
	profile, ok := l.cfg.ProfileFor(mode)
	if !ok {
		l.logger.Error("no energy profile for mode", logging.String(logging.FieldMode, string(mode)))
		return nil
	}

	outcomes := make(map[posture.Subsystem]string, len(posture.Subsystems()))
	for _, subsystem := range posture.Subsystems() {
		l.mu.Lock()
		due := l.pending[subsystem]
		l.mu.Unlock()
		if !due {
			continue
		}

		if err := l.applyOne(ctx, subsystem, mode, profile); err != nil {
			outcomes[subsystem] = err.Error()
			l.logger.Warn("subsystem actuation failed, will retry",
				logging.String(logging.FieldSubsystem, string(subsystem)),
				logging.String(logging.FieldMode, string(mode)),
				logging.Error(err))
			continue
		}

		outcomes[subsystem] = "ok"
		l.mu.Lock()
		delete(l.pending, subsystem)
		l.mu.Unlock()
	}
	return outcomes
}

func (l *Loop) applyOne(ctx context.Context, subsystem posture.Subsystem, mode posture.Mode, profile posture.EnergyProfile) error {
	switch subsystem {
	case posture.SubsystemPowerPlan:
		return l.port.ApplyPowerPlan(ctx, profile.PowerPlan)
	case posture.SubsystemGPULimit:
		if profile.ResetGPU() {
			return l.port.ResetGpuLimit(ctx)
		}
		return l.port.ApplyGpuLimit(ctx, profile.GPUPowerWatts, profile.GPUClock)
	case posture.SubsystemFanProfile:
		return l.port.SwitchFanProfile(ctx, profile.FanProfile)
	case posture.SubsystemPauseFlag:
		if err := l.port.SetPauseFlag(mode.Paused()); err != nil {
			return err
		}
		return l.flags.SetGameMode(mode.Gaming())
	default:
		return fmt.Errorf("unknown subsystem %q", subsystem)
	}
}

func (l *Loop) record(ctx context.Context, decision arbiter.Decision, outcomes map[posture.Subsystem]string) {
	if l.store == nil || !l.cfg.History.Enabled {
		return
	}
	entry := history.Entry{
		RunID:    l.runID,
		From:     decision.From,
		To:       decision.Mode,
		Trigger:  string(decision.Trigger),
		Outcomes: outcomes,
	}
	if err := l.store.Record(ctx, entry); err != nil {
		l.logger.Warn("transition not recorded", logging.Error(err))
	}
}

// Status returns a snapshot safe to serve from another goroutine.
func (l *Loop) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()

	var pending []posture.Subsystem
	for _, subsystem := range posture.Subsystems() {
		if l.pending[subsystem] {
			pending = append(pending, subsystem)
		}
	}
	return Status{
		RunID:          l.runID,
		Mode:           l.arb.Mode(),
		Signals:        l.signals,
		Tick:           l.tick,
		Pending:        pending,
		StartedAt:      l.startedAt,
		LastTransition: l.lastTransition,
		LastTrigger:    string(l.lastTrigger),
	}
}
