package actuator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/process"

	"governor/internal/config"
	"governor/internal/flagfile"
	"governor/internal/logging"
	"governor/internal/posture"
)

// ExecPort actuates subsystems by invoking the configured external tools.
type ExecPort struct {
	tools        config.Tools
	forceRestart bool
	runner       *Runner
	flags        *flagfile.Store
	logger       *slog.Logger

	// Swappable for tests: fan app process discovery and termination.
	findFanApp func(ctx context.Context, name string) ([]int32, error)
	killPID    func(pid int32) error
}

// NewExecPort builds the production actuator.
func NewExecPort(cfg *config.Config, runner *Runner, flags *flagfile.Store, logger *slog.Logger) *ExecPort {
	return &ExecPort{
		tools:        cfg.Tools,
		forceRestart: cfg.Fan.ForceRestart,
		runner:       runner,
		flags:        flags,
		logger:       logging.NewComponentLogger(logger, "actuator"),
		findFanApp:   findProcessesByName,
		killPID:      killProcess,
	}
}

// ApplyPowerPlan activates the plan by appending its id to the configured
// argv. When a query command is configured the active scheme is probed first
// and a plan that is already active is left alone; a failed probe falls
// through to the activation.
func (p *ExecPort) ApplyPowerPlan(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return Wrap(ErrConfiguration, posture.SubsystemPowerPlan, "empty plan id", nil)
	}
	if len(p.tools.PowerPlanQuery) > 0 {
		if out, err := p.runner.Output(ctx, p.tools.PowerPlanQuery...); err == nil && strings.Contains(out, id) {
			p.logger.Debug("power plan already active", logging.String("plan", id))
			return nil
		}
	}
	argv := append(append([]string{}, p.tools.PowerPlan...), id)
	if _, err := p.runner.Output(ctx, argv...); err != nil {
		return Wrap(classify(err), posture.SubsystemPowerPlan, "activate "+id, err)
	}
	p.logger.Debug("power plan applied", logging.String("plan", id))
	return nil
}

// ApplyGpuLimit caps board power and optionally locks core clocks.
func (p *ExecPort) ApplyGpuLimit(ctx context.Context, watts int, clock string) error {
	if watts > 0 {
		argv := append(append([]string{}, p.tools.GPU...), "-pl", strconv.Itoa(watts))
		if _, err := p.runner.Output(ctx, argv...); err != nil {
			return Wrap(classify(err), posture.SubsystemGPULimit, fmt.Sprintf("power cap %dW", watts), err)
		}
	}
	if clock = strings.TrimSpace(clock); clock != "" {
		argv := append(append([]string{}, p.tools.GPU...), "-lgc", clock)
		if _, err := p.runner.Output(ctx, argv...); err != nil {
			return Wrap(classify(err), posture.SubsystemGPULimit, "clock lock "+clock, err)
		}
	}
	p.logger.Debug("gpu limit applied", logging.Int("watts", watts), logging.String("clock", clock))
	return nil
}

// ResetGpuLimit restores the board's default power cap and clears the clock
// lock. The default limit is queried from the tool so the reset undoes
// whatever cap an earlier profile applied.
func (p *ExecPort) ResetGpuLimit(ctx context.Context) error {
	queryArgv := append(append([]string{}, p.tools.GPU...),
		"--query-gpu=power.default_limit", "--format=csv,noheader,nounits")
	out, err := p.runner.Output(ctx, queryArgv...)
	if err != nil {
		return Wrap(classify(err), posture.SubsystemGPULimit, "query default power limit", err)
	}
	watts, err := parseWatts(out)
	if err != nil {
		return Wrap(ErrExternalTool, posture.SubsystemGPULimit, "parse default power limit", err)
	}

	argv := append(append([]string{}, p.tools.GPU...), "-pl", strconv.Itoa(watts))
	if _, err := p.runner.Output(ctx, argv...); err != nil {
		return Wrap(classify(err), posture.SubsystemGPULimit, fmt.Sprintf("restore power cap %dW", watts), err)
	}

	argv = append(append([]string{}, p.tools.GPU...), "-rgc")
	if _, err := p.runner.Output(ctx, argv...); err != nil {
		return Wrap(classify(err), posture.SubsystemGPULimit, "reset clocks", err)
	}
	p.logger.Debug("gpu limit reset", logging.Int("watts", watts))
	return nil
}

// parseWatts reads the first line of a power query ("450.00") as whole watts.
func parseWatts(out string) (int, error) {
	line := strings.TrimSpace(out)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	value, err := strconv.ParseFloat(line, 64)
	if err != nil {
		return 0, fmt.Errorf("power limit %q: %w", line, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("non-positive power limit %q", line)
	}
	return int(math.Round(value)), nil
}

// SwitchFanProfile copies the named profile over the fan app's active profile
// and restarts the app. When the target profile is already active the switch is
// a no-op unless fan.force_restart is configured.
func (p *ExecPort) SwitchFanProfile(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return Wrap(ErrConfiguration, posture.SubsystemFanProfile, "empty profile name", nil)
	}
	if p.tools.FanProfilesDir == "" || p.tools.FanActiveProfile == "" {
		return Wrap(ErrConfiguration, posture.SubsystemFanProfile, "fan paths not configured", nil)
	}

	profilePath := filepath.Join(p.tools.FanProfilesDir, name+".json")
	target, err := os.ReadFile(profilePath)
	if err != nil {
		return Wrap(ErrConfiguration, posture.SubsystemFanProfile, "read profile "+name, err)
	}

	if !p.forceRestart {
		if active, err := os.ReadFile(p.tools.FanActiveProfile); err == nil && bytes.Equal(active, target) {
			p.logger.Debug("fan profile already active", logging.String("profile", name))
			return nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(p.tools.FanActiveProfile), 0o755); err != nil {
		return Wrap(ErrExternalTool, posture.SubsystemFanProfile, "ensure active profile dir", err)
	}
	if err := os.WriteFile(p.tools.FanActiveProfile, target, 0o644); err != nil {
		return Wrap(ErrExternalTool, posture.SubsystemFanProfile, "write active profile", err)
	}

	if err := p.restartFanApp(ctx); err != nil {
		return err
	}
	p.logger.Info("fan profile switched", logging.String("profile", name))
	return nil
}

// SetPauseFlag creates or removes the training pause flag.
func (p *ExecPort) SetPauseFlag(on bool) error {
	if err := p.flags.SetPause(on); err != nil {
		return Wrap(ErrExternalTool, posture.SubsystemPauseFlag, "set pause flag", err)
	}
	return nil
}

func (p *ExecPort) restartFanApp(ctx context.Context) error {
	if strings.TrimSpace(p.tools.FanApp) == "" {
		// No app configured; profile file swap is the whole actuation.
		return nil
	}

	pids, err := p.findFanApp(ctx, p.tools.FanApp)
	if err != nil {
		return Wrap(ErrExternalTool, posture.SubsystemFanProfile, "locate fan app", err)
	}
	for _, pid := range pids {
		if err := p.killPID(pid); err != nil {
			return Wrap(ErrExternalTool, posture.SubsystemFanProfile, fmt.Sprintf("stop fan app pid %d", pid), err)
		}
	}
	if err := p.runner.Start(p.tools.FanApp); err != nil {
		return Wrap(ErrExternalTool, posture.SubsystemFanProfile, "start fan app", err)
	}
	return nil
}

func classify(err error) error {
	if errors.Is(err, ErrTimeout) {
		return ErrTimeout
	}
	return ErrExternalTool
}

func findProcessesByName(ctx context.Context, name string) ([]int32, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	want := strings.ToLower(strings.TrimSuffix(filepath.Base(name), filepath.Ext(name)))
	var pids []int32
	for _, proc := range procs {
		procName, err := proc.NameWithContext(ctx)
		if err != nil {
			continue
		}
		got := strings.ToLower(strings.TrimSuffix(procName, filepath.Ext(procName)))
		if got == want {
			pids = append(pids, proc.Pid)
		}
	}
	return pids, nil
}

func killProcess(pid int32) error {
	proc, err := os.FindProcess(int(pid))
	if err != nil {
		return nil
	}
	return proc.Kill()
}

var _ Port = (*ExecPort)(nil)
