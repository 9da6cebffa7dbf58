package actuator

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"governor/internal/config"
	"governor/internal/flagfile"
	"governor/internal/logging"
	"governor/internal/posture"
)

func newFanFixture(t *testing.T, forceRestart bool) (*ExecPort, string) {
	t.Helper()
	dir := t.TempDir()
	profilesDir := filepath.Join(dir, "profiles")
	if err := os.MkdirAll(profilesDir, 0o755); err != nil {
		t.Fatalf("mk profiles dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(profilesDir, "quiet.json"), []byte(`{"curve":"quiet"}`), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(profilesDir, "performance.json"), []byte(`{"curve":"performance"}`), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}

	cfg := config.Default()
	cfg.Tools.FanApp = "" // profile swap only; no app restart in tests
	cfg.Tools.FanProfilesDir = profilesDir
	cfg.Tools.FanActiveProfile = filepath.Join(dir, "active.json")
	cfg.Fan.ForceRestart = forceRestart

	flags := flagfile.NewStore(filepath.Join(dir, "pause.flag"), filepath.Join(dir, "game_mode.flag"))
	port := NewExecPort(&cfg, NewRunner(time.Second), flags, logging.NewNop())
	return port, cfg.Tools.FanActiveProfile
}

func TestSwitchFanProfileWritesActiveProfile(t *testing.T) {
	port, activePath := newFanFixture(t, false)

	if err := port.SwitchFanProfile(context.Background(), "quiet"); err != nil {
		t.Fatalf("switch: %v", err)
	}
	data, err := os.ReadFile(activePath)
	if err != nil {
		t.Fatalf("read active profile: %v", err)
	}
	if string(data) != `{"curve":"quiet"}` {
		t.Fatalf("active profile = %q", data)
	}
}

func TestSwitchFanProfileSkipsWhenAlreadyActive(t *testing.T) {
	port, activePath := newFanFixture(t, false)

	if err := port.SwitchFanProfile(context.Background(), "quiet"); err != nil {
		t.Fatalf("first switch: %v", err)
	}
	before, err := os.Stat(activePath)
	if err != nil {
		t.Fatalf("stat active profile: %v", err)
	}

	restarted := false
	port.findFanApp = func(context.Context, string) ([]int32, error) {
		restarted = true
		return nil, nil
	}
	port.tools.FanApp = "fanapp"

	if err := port.SwitchFanProfile(context.Background(), "quiet"); err != nil {
		t.Fatalf("second switch: %v", err)
	}
	if restarted {
		t.Fatalf("fan app restart attempted for an already-active profile")
	}
	after, err := os.Stat(activePath)
	if err != nil {
		t.Fatalf("stat active profile: %v", err)
	}
	if !after.ModTime().Equal(before.ModTime()) {
		t.Fatalf("active profile rewritten for a no-op switch")
	}
}

func TestSwitchFanProfileForceRestart(t *testing.T) {
	port, _ := newFanFixture(t, true)

	if err := port.SwitchFanProfile(context.Background(), "quiet"); err != nil {
		t.Fatalf("first switch: %v", err)
	}

	killed := []int32{}
	port.tools.FanApp = "fanapp"
	port.findFanApp = func(context.Context, string) ([]int32, error) { return []int32{4242}, nil }
	port.killPID = func(pid int32) error {
		killed = append(killed, pid)
		return nil
	}
	// force_restart must restart even though the profile is unchanged. The
	// start call fails because "fanapp" does not exist, which proves the
	// restart path ran.
	err := port.SwitchFanProfile(context.Background(), "quiet")
	if err == nil {
		t.Fatalf("expected start failure for missing fan app binary")
	}
	if !errors.Is(err, ErrExternalTool) {
		t.Fatalf("error = %v, want ErrExternalTool", err)
	}
	if len(killed) != 1 || killed[0] != 4242 {
		t.Fatalf("killed = %v, want [4242]", killed)
	}
}

// stubCommands replaces commandContext with a recorder; respond maps an argv
// substring to the line the fake tool prints.
func stubCommands(t *testing.T, respond map[string]string) *[][]string {
	t.Helper()
	calls := &[][]string{}
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		*calls = append(*calls, append([]string{name}, args...))
		joined := strings.Join(append([]string{name}, args...), " ")
		for needle, line := range respond {
			if strings.Contains(joined, needle) {
				return exec.CommandContext(ctx, "echo", line)
			}
		}
		return exec.CommandContext(ctx, "true")
	}
	t.Cleanup(func() { commandContext = exec.CommandContext })
	return calls
}

func TestResetGpuLimitRestoresDefaultPowerCap(t *testing.T) {
	port, _ := newFanFixture(t, false)
	calls := stubCommands(t, map[string]string{"power.default_limit": "450.00"})

	if err := port.ResetGpuLimit(context.Background()); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if len(*calls) != 3 {
		t.Fatalf("calls = %v, want query, cap restore, clock reset", *calls)
	}
	if got := strings.Join((*calls)[1], " "); got != "nvidia-smi -pl 450" {
		t.Fatalf("cap restore = %q", got)
	}
	if got := strings.Join((*calls)[2], " "); got != "nvidia-smi -rgc" {
		t.Fatalf("clock reset = %q", got)
	}
}

func TestResetGpuLimitRejectsUnparseableDefault(t *testing.T) {
	port, _ := newFanFixture(t, false)
	stubCommands(t, map[string]string{"power.default_limit": "[N/A]"})

	err := port.ResetGpuLimit(context.Background())
	if !errors.Is(err, ErrExternalTool) {
		t.Fatalf("error = %v, want ErrExternalTool", err)
	}
}

func TestParseWatts(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "450.00", want: 450},
		{in: "320", want: 320},
		{in: "260.50\n260.50", want: 261},
		{in: "", wantErr: true},
		{in: "[N/A]", wantErr: true},
		{in: "0.00", wantErr: true},
	}
	for _, tc := range cases {
		got, err := parseWatts(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseWatts(%q): expected error, got %d", tc.in, got)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("parseWatts(%q) = %d, %v; want %d", tc.in, got, err, tc.want)
		}
	}
}

func TestApplyPowerPlanSkipsWhenAlreadyActive(t *testing.T) {
	port, _ := newFanFixture(t, false)
	active := "381b4222-f694-41f0-9685-ff5bb260df2e"
	calls := stubCommands(t, map[string]string{
		"/getactivescheme": "Power Scheme GUID: " + active + "  (Balanced)",
	})

	if err := port.ApplyPowerPlan(context.Background(), active); err != nil {
		t.Fatalf("apply active plan: %v", err)
	}
	if len(*calls) != 1 {
		t.Fatalf("active plan re-applied: %v", *calls)
	}

	*calls = nil
	other := "8c5e7fda-e8bf-4a96-9a85-a6e23a8c635c"
	if err := port.ApplyPowerPlan(context.Background(), other); err != nil {
		t.Fatalf("apply other plan: %v", err)
	}
	if len(*calls) != 2 {
		t.Fatalf("calls = %v, want probe then activation", *calls)
	}
	if got := strings.Join((*calls)[1], " "); got != "powercfg /setactive "+other {
		t.Fatalf("activation = %q", got)
	}
}

func TestSwitchFanProfileUnknownName(t *testing.T) {
	port, _ := newFanFixture(t, false)
	err := port.SwitchFanProfile(context.Background(), "missing")
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("error = %v, want ErrConfiguration", err)
	}
}

func TestSetPauseFlagRoundTrip(t *testing.T) {
	port, _ := newFanFixture(t, false)
	if err := port.SetPauseFlag(true); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := port.SetPauseFlag(true); err != nil {
		t.Fatalf("idempotent set: %v", err)
	}
	if err := port.SetPauseFlag(false); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := port.SetPauseFlag(false); err != nil {
		t.Fatalf("idempotent clear: %v", err)
	}
}

func TestRunnerTimeout(t *testing.T) {
	runner := NewRunner(100 * time.Millisecond)
	_, err := runner.Output(context.Background(), "sleep", "2")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}
}

func TestRunnerReportsToolFailure(t *testing.T) {
	runner := NewRunner(time.Second)
	_, err := runner.Output(context.Background(), "false")
	if !errors.Is(err, ErrExternalTool) {
		t.Fatalf("error = %v, want ErrExternalTool", err)
	}
}

func TestWrapNamesSubsystem(t *testing.T) {
	err := Wrap(ErrTimeout, posture.SubsystemGPULimit, "power cap 260W", context.DeadlineExceeded)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("marker lost: %v", err)
	}
	if got := err.Error(); !strings.Contains(got, "gpu_limit") {
		t.Fatalf("subsystem missing from %q", got)
	}
}
