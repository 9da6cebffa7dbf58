// Package svctask registers the daemon with the host's task scheduler so it
// starts at login. The scheduler commands are plain argv templates from the
// config; "{exe}" expands to the governor binary path.
package svctask

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"governor/internal/config"
)

var commandContext = exec.CommandContext

const commandTimeout = 30 * time.Second

// ExpandArgv substitutes the {exe} placeholder in a scheduler argv template.
func ExpandArgv(argv []string, exePath string) []string {
	out := make([]string, len(argv))
	for i, arg := range argv {
		out[i] = strings.ReplaceAll(arg, "{exe}", exePath)
	}
	return out
}

// Install registers the daemon with the configured scheduler command.
func Install(ctx context.Context, cfg *config.Config) (string, error) {
	return run(ctx, cfg.Service.Install, "service.install")
}

// Uninstall removes the scheduler registration.
func Uninstall(ctx context.Context, cfg *config.Config) (string, error) {
	return run(ctx, cfg.Service.Uninstall, "service.uninstall")
}

func run(ctx context.Context, template []string, name string) (string, error) {
	if len(template) == 0 {
		return "", fmt.Errorf("%s command not configured", name)
	}

	exePath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable path: %w", err)
	}
	argv := ExpandArgv(template, exePath)

	runCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	cmd := commandContext(runCtx, argv[0], argv[1:]...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return string(output), fmt.Errorf("%s timed out after %s", name, commandTimeout)
		}
		return string(output), fmt.Errorf("%s failed: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}
