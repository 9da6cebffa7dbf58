// Package procwatch classifies running processes into workload signals.
//
// Each tick the observer enumerates processes and reports whether any of them
// match the configured game or training filters. Enumeration failures are
// tolerated: the observer returns the previous tick's signals so a transient
// error never thrashes the mode state machine.
package procwatch

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shirou/gopsutil/v4/process"

	"governor/internal/config"
	"governor/internal/logging"
	"governor/internal/posture"
)

// ProcessInfo is the slice of process state the observer needs.
type ProcessInfo struct {
	Name    string
	Cmdline string
}

// ListFunc enumerates running processes. Swappable in tests.
type ListFunc func(ctx context.Context) ([]ProcessInfo, error)

// Observer watches for game and training activity.
type Observer struct {
	game     config.ProcessFilter
	training config.ProcessFilter
	list     ListFunc
	logger   *slog.Logger

	cached posture.Signals
}

// NewObserver builds an observer over the live process table.
func NewObserver(detect config.Detect, logger *slog.Logger) *Observer {
	return &Observer{
		game:     detect.Game,
		training: detect.Training,
		list:     listProcesses,
		logger:   logging.NewComponentLogger(logger, "procwatch"),
	}
}

// WithLister overrides process enumeration; used by tests and the once mode.
func (o *Observer) WithLister(list ListFunc) *Observer {
	if list != nil {
		o.list = list
	}
	return o
}

// Observe returns the current workload signals. On enumeration failure the
// previous tick's signals are returned along with the error so the caller can
// log it and continue.
func (o *Observer) Observe(ctx context.Context) (posture.Signals, error) {
	procs, err := o.list(ctx)
	if err != nil {
		o.logger.Warn("process enumeration failed, reusing previous signals", logging.Error(err))
		return o.cached, err
	}

	signals := posture.Signals{}
	for _, proc := range procs {
		if !signals.Game && Matches(o.game, proc) {
			signals.Game = true
		}
		if !signals.Training && Matches(o.training, proc) {
			signals.Training = true
		}
		if signals.Game && signals.Training {
			break
		}
	}

	o.cached = signals
	return signals, nil
}

// Matches reports whether a process satisfies a filter. The name must match one
// of the configured names; when markers are configured at least one marker
// substring must also appear in the command line.
func Matches(filter config.ProcessFilter, proc ProcessInfo) bool {
	if len(filter.Names) == 0 {
		return false
	}
	name := strings.ToLower(proc.Name)
	matched := false
	for _, candidate := range filter.Names {
		if name == strings.ToLower(candidate) {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}
	if len(filter.Markers) == 0 {
		return true
	}
	cmdline := strings.ToLower(proc.Cmdline)
	for _, marker := range filter.Markers {
		if strings.Contains(cmdline, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

func listProcesses(ctx context.Context) ([]ProcessInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ProcessInfo, 0, len(procs))
	for _, proc := range procs {
		name, err := proc.NameWithContext(ctx)
		if err != nil {
			// Processes exit between enumeration and inspection; skip them.
			continue
		}
		cmdline, err := proc.CmdlineWithContext(ctx)
		if err != nil {
			cmdline = ""
		}
		out = append(out, ProcessInfo{Name: name, Cmdline: cmdline})
	}
	return out, nil
}
