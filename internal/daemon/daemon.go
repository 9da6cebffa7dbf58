// Package daemon enforces single-instance execution and owns the poll loop's
// lifecycle on behalf of the IPC layer.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"governor/internal/config"
	"governor/internal/flagfile"
	"governor/internal/history"
	"governor/internal/logging"
	"governor/internal/orchestrator"
)

// Daemon coordinates the orchestrator loop and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	loop   *orchestrator.Loop
	store  *history.Store
	flags  *flagfile.Store

	logPath  string
	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	LockFilePath  string
	HistoryDBPath string
	PausePresent  bool
	Loop          orchestrator.Status
}

// New constructs a daemon with initialized dependencies. The history store may
// be nil when history is disabled.
func New(cfg *config.Config, loop *orchestrator.Loop, store *history.Store, flags *flagfile.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || loop == nil || flags == nil || logger == nil {
		return nil, errors.New("daemon requires config, loop, flags, and logger")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "governord.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logger,
		loop:     loop,
		store:    store,
		flags:    flags,
		logPath:  filepath.Join(cfg.Paths.LogDir, "governor.log"),
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and launches the poll loop.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another governor instance is already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})

	go func() {
		defer close(d.done)
		if err := d.loop.Run(loopCtx); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error("poll loop exited", logging.Error(err))
		}
	}()

	d.running.Store(true)
	d.logger.Info("governor daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop cancels the poll loop, waits for the in-flight tick, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.done != nil {
		<-d.done
		d.done = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("governor daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// SetPause writes or removes the pause flag directly, bypassing the mode state
// machine. The override holds until the next committed transition rewrites the
// flag from the new mode.
func (d *Daemon) SetPause(on bool) error {
	if err := d.flags.SetPause(on); err != nil {
		return err
	}
	d.logger.Info("pause flag overridden", logging.Bool("paused", on))
	return nil
}

// History returns the most recent committed transitions.
func (d *Daemon) History(ctx context.Context, limit int) ([]history.Entry, error) {
	if d.store == nil {
		return nil, errors.New("history store unavailable")
	}
	return d.store.Recent(ctx, limit)
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// Status returns the current daemon status.
func (d *Daemon) Status(context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		LockFilePath: d.lockPath,
		Loop:         d.loop.Status(),
	}
	if d.store != nil {
		status.HistoryDBPath = d.store.Path()
	}
	if present, err := d.flags.PausePresent(); err == nil {
		status.PausePresent = present
	}
	return status
}
