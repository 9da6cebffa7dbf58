package actuator

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"
)

var commandContext = exec.CommandContext

// Runner executes external tool commands with a bounded timeout.
type Runner struct {
	timeout time.Duration
}

// NewRunner builds a runner; timeout bounds every invocation.
func NewRunner(timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Runner{timeout: timeout}
}

// Output runs argv and returns its combined output. Expiry of the per-call
// timeout is reported as ErrTimeout so callers can retry on the next tick
// instead of blocking the loop.
func (r *Runner) Output(ctx context.Context, argv ...string) (string, error) {
	if len(argv) == 0 {
		return "", errors.New("empty command")
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := commandContext(runCtx, argv[0], argv[1:]...) //nolint:gosec
	out, err := cmd.CombinedOutput()
	output := strings.TrimSpace(string(out))
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return output, ErrTimeout
		}
		if output != "" {
			return output, errors.Join(ErrExternalTool, errors.New(output))
		}
		return output, errors.Join(ErrExternalTool, err)
	}
	return output, nil
}

// Start launches argv detached without waiting for completion; used for
// relaunching the fan-control application.
func (r *Runner) Start(argv ...string) error {
	if len(argv) == 0 {
		return errors.New("empty command")
	}
	cmd := exec.Command(argv[0], argv[1:]...) //nolint:gosec
	if err := cmd.Start(); err != nil {
		return errors.Join(ErrExternalTool, err)
	}
	return cmd.Process.Release()
}
