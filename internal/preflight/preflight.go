// Package preflight verifies the environment before the daemon starts: the
// control and log directories must be writable and the configured external
// tools must resolve to binaries on PATH.
package preflight

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"governor/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Control directory", cfg.Paths.ControlDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	if cfg.Tools.FanProfilesDir != "" {
		results = append(results, CheckDirectoryAccess("Fan profiles directory", cfg.Tools.FanProfilesDir))
	}

	results = append(results, CheckTool("Power plan tool", argv0(cfg.Tools.PowerPlan), false))
	results = append(results, CheckTool("GPU tool", argv0(cfg.Tools.GPU), false))
	if strings.TrimSpace(cfg.Tools.FanApp) != "" {
		// The fan app may be started later by the daemon itself, so a miss
		// here is a warning rather than a hard failure.
		results = append(results, CheckTool("Fan app", cfg.Tools.FanApp, true))
	}

	return results
}

// AllPassed reports whether every non-optional check passed.
func AllPassed(results []Result) bool {
	for _, result := range results {
		if !result.Passed && !result.Optional {
			return false
		}
	}
	return true
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := accessReadWrite(path); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckTool verifies that a command resolves to an executable.
func CheckTool(name, command string, optional bool) Result {
	cmd := strings.TrimSpace(command)
	if cmd == "" {
		return Result{Name: name, Optional: optional, Detail: "command not configured"}
	}
	if _, err := exec.LookPath(cmd); err != nil {
		return Result{Name: name, Optional: optional, Detail: fmt.Sprintf("binary %q not found", cmd)}
	}
	return Result{Name: name, Passed: true, Optional: optional, Detail: cmd}
}

func argv0(argv []string) string {
	if len(argv) == 0 {
		return ""
	}
	return argv[0]
}
