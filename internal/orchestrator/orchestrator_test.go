package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"governor/internal/config"
	"governor/internal/flagfile"
	"governor/internal/history"
	"governor/internal/logging"
	"governor/internal/posture"
	"governor/internal/procwatch"
)

// stubPort records actuation calls and fails on demand per subsystem.
type stubPort struct {
	powerPlans  []string
	gpuLimits   []int
	gpuResets   int
	fanProfiles []string
	pauseStates []bool

	gpuErr  error
	planErr error
}

func (s *stubPort) ApplyPowerPlan(_ context.Context, id string) error {
	if s.planErr != nil {
		return s.planErr
	}
	s.powerPlans = append(s.powerPlans, id)
	return nil
}

func (s *stubPort) ApplyGpuLimit(_ context.Context, watts int, _ string) error {
	if s.gpuErr != nil {
		return s.gpuErr
	}
	s.gpuLimits = append(s.gpuLimits, watts)
	return nil
}

func (s *stubPort) ResetGpuLimit(context.Context) error {
	if s.gpuErr != nil {
		return s.gpuErr
	}
	s.gpuResets++
	return nil
}

func (s *stubPort) SwitchFanProfile(_ context.Context, name string) error {
	s.fanProfiles = append(s.fanProfiles, name)
	return nil
}

func (s *stubPort) SetPauseFlag(on bool) error {
	s.pauseStates = append(s.pauseStates, on)
	return nil
}

func (s *stubPort) reset() {
	s.powerPlans = nil
	s.gpuLimits = nil
	s.gpuResets = 0
	s.fanProfiles = nil
	s.pauseStates = nil
}

type fixture struct {
	loop    *Loop
	port    *stubPort
	flags   *flagfile.Store
	signals *posture.Signals
}

func newFixture(t *testing.T, minSamples int) *fixture {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Workflow.MinSamples = minSamples
	cfg.Paths.ControlDir = dir
	cfg.Paths.LogDir = dir
	cfg.Detect.Game.Names = []string{"eldenring.exe"}

	signals := &posture.Signals{}
	observer := procwatch.NewObserver(cfg.Detect, logging.NewNop()).
		WithLister(func(context.Context) ([]procwatch.ProcessInfo, error) {
			var procs []procwatch.ProcessInfo
			if signals.Game {
				procs = append(procs, procwatch.ProcessInfo{Name: cfg.Detect.Game.Names[0]})
			}
			if signals.Training {
				procs = append(procs, procwatch.ProcessInfo{
					Name:    cfg.Detect.Training.Names[0],
					Cmdline: cfg.Detect.Training.Names[0] + " " + cfg.Detect.Training.Markers[0],
				})
			}
			return procs, nil
		})

	flags := flagfile.NewStore(cfg.PauseFlagPath(), cfg.GameModeFlagPath())
	port := &stubPort{}
	loop := New(&cfg, observer, port, flags, logging.NewNop())
	return &fixture{loop: loop, port: port, flags: flags, signals: signals}
}

func TestBootstrapAppliesIdleBaselineAndClearsStaleFlags(t *testing.T) {
	fx := newFixture(t, 3)

	// Flags surviving a crash are stale state, never a signal.
	if err := fx.flags.SetGameMode(true); err != nil {
		t.Fatalf("seed stale flag: %v", err)
	}
	if err := fx.flags.SetPause(true); err != nil {
		t.Fatalf("seed stale flag: %v", err)
	}

	if err := fx.loop.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	if len(fx.port.powerPlans) != 1 || len(fx.port.fanProfiles) != 1 {
		t.Fatalf("baseline not applied once: plans=%v fans=%v", fx.port.powerPlans, fx.port.fanProfiles)
	}
	if len(fx.port.pauseStates) != 1 || fx.port.pauseStates[0] {
		t.Fatalf("pause states = %v, want one false", fx.port.pauseStates)
	}
	if present, _ := fx.flags.GameModePresent(); present {
		t.Fatalf("stale game mode flag survived bootstrap")
	}
	if status := fx.loop.Status(); status.Mode != posture.ModeIdle {
		t.Fatalf("mode after bootstrap = %s", status.Mode)
	}
}

func TestBootstrapResumesGamingWhenFlagConfirmedByLiveGame(t *testing.T) {
	fx := newFixture(t, 3)
	ctx := context.Background()

	// A previous run was gaming when it died: both flags on disk, game still up.
	if err := fx.flags.SetGameMode(true); err != nil {
		t.Fatalf("seed game flag: %v", err)
	}
	if err := fx.flags.SetPause(true); err != nil {
		t.Fatalf("seed pause flag: %v", err)
	}
	fx.signals.Game = true

	if err := fx.loop.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	if status := fx.loop.Status(); status.Mode != posture.ModeGaming {
		t.Fatalf("mode after bootstrap = %s, want gaming", status.Mode)
	}
	if len(fx.port.pauseStates) != 1 || !fx.port.pauseStates[0] {
		t.Fatalf("pause states = %v, want one true (training stays paused)", fx.port.pauseStates)
	}
	if present, _ := fx.flags.GameModePresent(); !present {
		t.Fatalf("game mode flag dropped while resuming gaming")
	}
	want := fx.loop.cfg.Profiles["gaming"].PowerPlan
	if len(fx.port.powerPlans) != 1 || fx.port.powerPlans[0] != want {
		t.Fatalf("power plans = %v, want [%s]", fx.port.powerPlans, want)
	}

	// No re-debounce: the next tick is steady state, nothing is re-actuated.
	fx.port.reset()
	if decision := fx.loop.Tick(ctx); decision.Changed || decision.Mode != posture.ModeGaming {
		t.Fatalf("decision after resume = %+v", decision)
	}
	if len(fx.port.pauseStates)+len(fx.port.powerPlans)+fx.port.gpuResets != 0 {
		t.Fatalf("steady state actuated after resume: %+v", fx.port)
	}

	// Leaving the resumed mode still takes the full debounce window.
	fx.signals.Game = false
	fx.loop.Tick(ctx)
	fx.loop.Tick(ctx)
	if status := fx.loop.Status(); status.Mode != posture.ModeGaming {
		t.Fatalf("left gaming before debounce window: %s", status.Mode)
	}
	if decision := fx.loop.Tick(ctx); !decision.Changed || decision.Mode != posture.ModeIdle {
		t.Fatalf("decision = %+v, want fallback to idle", decision)
	}
}

func TestTransitionAppliesEverySubsystemExactlyOnce(t *testing.T) {
	fx := newFixture(t, 2)
	ctx := context.Background()
	if err := fx.loop.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	fx.port.reset()

	fx.signals.Training = true
	if decision := fx.loop.Tick(ctx); decision.Changed {
		t.Fatalf("transition committed before debounce window")
	}
	decision := fx.loop.Tick(ctx)
	if !decision.Changed || decision.Mode != posture.ModeTraining {
		t.Fatalf("decision = %+v, want training transition", decision)
	}

	if len(fx.port.powerPlans) != 1 {
		t.Fatalf("power plan calls = %v", fx.port.powerPlans)
	}
	if len(fx.port.gpuLimits) != 1 {
		t.Fatalf("gpu limit calls = %v", fx.port.gpuLimits)
	}
	if len(fx.port.fanProfiles) != 1 {
		t.Fatalf("fan calls = %v", fx.port.fanProfiles)
	}
	if len(fx.port.pauseStates) != 1 || fx.port.pauseStates[0] {
		t.Fatalf("pause states = %v, want one false", fx.port.pauseStates)
	}

	// Steady state actuates nothing.
	fx.port.reset()
	fx.loop.Tick(ctx)
	fx.loop.Tick(ctx)
	if len(fx.port.powerPlans)+len(fx.port.gpuLimits)+fx.port.gpuResets+len(fx.port.fanProfiles)+len(fx.port.pauseStates) != 0 {
		t.Fatalf("steady state actuated: %+v", fx.port)
	}
}

func TestFailedSubsystemRetriesWithoutReapplyingOthers(t *testing.T) {
	fx := newFixture(t, 1)
	ctx := context.Background()
	if err := fx.loop.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	fx.port.reset()

	fx.port.gpuErr = errors.New("nvidia-smi timed out")
	fx.signals.Training = true
	decision := fx.loop.Tick(ctx)
	if !decision.Changed || decision.Mode != posture.ModeTraining {
		t.Fatalf("decision = %+v", decision)
	}

	if len(fx.port.powerPlans) != 1 || len(fx.port.fanProfiles) != 1 || len(fx.port.pauseStates) != 1 {
		t.Fatalf("gpu failure blocked other subsystems: %+v", fx.port)
	}
	if len(fx.port.gpuLimits) != 0 {
		t.Fatalf("gpu applied despite error: %v", fx.port.gpuLimits)
	}
	status := fx.loop.Status()
	if len(status.Pending) != 1 || status.Pending[0] != posture.SubsystemGPULimit {
		t.Fatalf("pending = %v, want [gpu_limit]", status.Pending)
	}

	// Tool recovers; only the pending subsystem is retried.
	fx.port.gpuErr = nil
	fx.port.reset()
	fx.loop.Tick(ctx)
	if len(fx.port.gpuLimits) != 1 {
		t.Fatalf("gpu not retried: %+v", fx.port)
	}
	if len(fx.port.powerPlans) != 0 || len(fx.port.fanProfiles) != 0 || len(fx.port.pauseStates) != 0 {
		t.Fatalf("retry re-actuated healthy subsystems: %+v", fx.port)
	}
	if status := fx.loop.Status(); len(status.Pending) != 0 {
		t.Fatalf("pending after recovery = %v", status.Pending)
	}
}

func TestGamingTransitionPausesTrainingAndSetsGameFlag(t *testing.T) {
	fx := newFixture(t, 1)
	ctx := context.Background()
	if err := fx.loop.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	fx.signals.Training = true
	fx.loop.Tick(ctx)
	fx.port.reset()

	fx.signals.Game = true
	decision := fx.loop.Tick(ctx)
	if decision.Mode != posture.ModeGaming {
		t.Fatalf("mode = %s, want gaming", decision.Mode)
	}
	if len(fx.port.pauseStates) != 1 || !fx.port.pauseStates[0] {
		t.Fatalf("pause states = %v, want one true", fx.port.pauseStates)
	}
	if present, _ := fx.flags.GameModePresent(); !present {
		t.Fatalf("game mode flag missing in gaming mode")
	}

	// Game exits with training still live: fall back to training, resume.
	fx.signals.Game = false
	fx.port.reset()
	decision = fx.loop.Tick(ctx)
	if decision.Mode != posture.ModeTraining {
		t.Fatalf("fallback mode = %s, want training", decision.Mode)
	}
	if len(fx.port.pauseStates) != 1 || fx.port.pauseStates[0] {
		t.Fatalf("pause states = %v, want one false", fx.port.pauseStates)
	}
	if present, _ := fx.flags.GameModePresent(); present {
		t.Fatalf("game mode flag survived fallback to training")
	}
}

func TestTransitionRecordedInHistory(t *testing.T) {
	fx := newFixture(t, 1)
	ctx := context.Background()

	dir := t.TempDir()
	store, err := history.Open(dir)
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	defer store.Close()
	fx.loop.WithHistory(store, "run-test")

	if err := fx.loop.Bootstrap(ctx); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	fx.signals.Game = true
	fx.loop.Tick(ctx)

	entries, err := store.Recent(ctx, 5)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	entry := entries[0]
	if entry.From != posture.ModeIdle || entry.To != posture.ModeGaming || entry.Trigger != "game_detected" {
		t.Fatalf("entry = %+v", entry)
	}
	if entry.Outcomes[posture.SubsystemPowerPlan] != "ok" {
		t.Fatalf("outcomes = %v", entry.Outcomes)
	}
	if entry.RunID != "run-test" {
		t.Fatalf("run id = %q", entry.RunID)
	}

	// The database lives where the store was opened, not in the control dir.
	if _, err := os.Stat(filepath.Join(dir, "history.db")); err != nil {
		t.Fatalf("history db missing: %v", err)
	}
}
