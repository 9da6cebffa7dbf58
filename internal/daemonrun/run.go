// Package daemonrun wires the daemon process together: logging, preflight,
// history, telemetry, the orchestrator loop, and the IPC server.
package daemonrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"

	"governor/internal/actuator"
	"governor/internal/config"
	"governor/internal/daemon"
	"governor/internal/flagfile"
	"governor/internal/history"
	"governor/internal/ipc"
	"governor/internal/logging"
	"governor/internal/orchestrator"
	"governor/internal/preflight"
	"governor/internal/procwatch"
	"governor/internal/telemetry"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// Run starts the governor daemon runtime loop and blocks until shutdown.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	runID := uuid.NewString()
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("governor-%s.log", time.Now().UTC().Format("20060102T150405Z")))

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update governor.log link: %v\n", err)
	}

	results := preflight.RunAll(cfg)
	for _, result := range results {
		if result.Passed {
			logger.Debug("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail))
			continue
		}
		logger.Warn("preflight check failed",
			logging.String("check", result.Name),
			logging.Bool("optional", result.Optional),
			logging.String("detail", result.Detail))
	}
	if !preflight.AllPassed(results) {
		return fmt.Errorf("preflight failed; fix the reported checks or adjust the config")
	}

	pidPath := filepath.Join(cfg.Paths.LogDir, "governor.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	var store *history.Store
	if cfg.History.Enabled {
		store, err = history.Open(cfg.Paths.LogDir)
		if err != nil {
			logger.Error("open history store", logging.Error(err))
			return err
		}
		defer store.Close()
	}

	runner := actuator.NewRunner(time.Duration(cfg.Workflow.CommandTimeout) * time.Second)
	flags := flagfile.NewStore(cfg.PauseFlagPath(), cfg.GameModeFlagPath())
	port := actuator.NewExecPort(cfg, runner, flags, logger)
	observer := procwatch.NewObserver(cfg.Detect, logger)

	loop := orchestrator.New(cfg, observer, port, flags, logger)
	if store != nil {
		loop.WithHistory(store, runID)
	}
	if cfg.Telemetry.Enabled {
		loop.WithSampler(telemetry.NewSampler(cfg, runner, logger))
	}

	d, err := daemon.New(cfg, loop, store, flags, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, cancel, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	logger.Info("governor starting",
		logging.String(logging.FieldRunID, runID),
		logging.String("socket", cfg.SocketPath()),
		logging.String("log", logPath))

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	<-signalCtx.Done()
	logger.Info("governor shutting down")
	return nil
}

// RunOnce executes a single observe/arbitrate/actuate pass and returns the
// resulting status; used by the `once` command for dry diagnostics.
func RunOnce(ctx context.Context, cfg *config.Config, opts Options) (orchestrator.Status, error) {
	if cfg == nil {
		return orchestrator.Status{}, fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return orchestrator.Status{}, err
	}

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:  level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return orchestrator.Status{}, fmt.Errorf("init logger: %w", err)
	}

	// A single pass has no debounce window; let the live signals commit
	// immediately.
	onceCfg := *cfg
	onceCfg.Workflow.MinSamples = 1

	runner := actuator.NewRunner(time.Duration(onceCfg.Workflow.CommandTimeout) * time.Second)
	flags := flagfile.NewStore(onceCfg.PauseFlagPath(), onceCfg.GameModeFlagPath())
	port := actuator.NewExecPort(&onceCfg, runner, flags, logger)
	observer := procwatch.NewObserver(onceCfg.Detect, logger)

	loop := orchestrator.New(&onceCfg, observer, port, flags, logger)
	if err := loop.Bootstrap(ctx); err != nil {
		return orchestrator.Status{}, err
	}
	loop.Tick(ctx)
	return loop.Status(), nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "governor.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
