package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"governor/internal/posture"
)

//go:embed sample_config.toml
var sampleConfig string

// Workflow contains daemon timing configuration.
type Workflow struct {
	PollInterval   int `toml:"poll_interval"`
	MinSamples     int `toml:"min_samples"`
	CommandTimeout int `toml:"command_timeout"`
}

// Paths contains directory configuration.
type Paths struct {
	ControlDir string `toml:"control_dir"`
	LogDir     string `toml:"log_dir"`
}

// ProcessFilter selects running processes that count as a workload signal.
// Names match the process executable name case-insensitively; when Markers is
// non-empty a process additionally needs at least one marker substring in its
// command line. The marker requirement keeps unrelated processes that share an
// interpreter name (a stray python REPL) from registering as training work.
type ProcessFilter struct {
	Names   []string `toml:"names"`
	Markers []string `toml:"markers"`
}

// Detect groups the game and training process filters.
type Detect struct {
	Game     ProcessFilter `toml:"game"`
	Training ProcessFilter `toml:"training"`
}

// Tools contains the external command shapes for each subsystem.
type Tools struct {
	PowerPlan        []string `toml:"power_plan"`
	PowerPlanQuery   []string `toml:"power_plan_query"`
	GPU              []string `toml:"gpu"`
	FanApp           string   `toml:"fan_app"`
	FanProfilesDir   string   `toml:"fan_profiles_dir"`
	FanActiveProfile string   `toml:"fan_active_profile"`
}

// Fan contains fan-switch behavior knobs.
type Fan struct {
	// ForceRestart restarts the fan app on every mode transition even when
	// the target profile is already active.
	ForceRestart bool `toml:"force_restart"`
}

// Profile is the TOML shape of one mode's energy profile.
type Profile struct {
	FanProfile    string `toml:"fan_profile"`
	PowerPlan     string `toml:"power_plan"`
	GPUPowerWatts int    `toml:"gpu_power_watts"`
	GPUClock      string `toml:"gpu_clock"`
}

// Telemetry contains the periodic CSV sampler settings.
type Telemetry struct {
	Enabled     bool   `toml:"enabled"`
	SampleEvery int    `toml:"sample_every"`
	Path        string `toml:"path"`
}

// History contains the transition log settings.
type History struct {
	Enabled bool `toml:"enabled"`
}

// Service contains the OS scheduler argv templates for autostart registration.
type Service struct {
	Install   []string `toml:"install"`
	Uninstall []string `toml:"uninstall"`
}

// Logging contains log output configuration.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for governor.
type Config struct {
	Workflow  Workflow           `toml:"workflow"`
	Paths     Paths              `toml:"paths"`
	Detect    Detect             `toml:"detect"`
	Tools     Tools              `toml:"tools"`
	Fan       Fan                `toml:"fan"`
	Profiles  map[string]Profile `toml:"profile"`
	Telemetry Telemetry          `toml:"telemetry"`
	History   History            `toml:"history"`
	Service   Service            `toml:"service"`
	Logging   Logging            `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/governor/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and mode keys canonicalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("governor.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.ControlDir, c.Paths.LogDir}
	if c.Telemetry.Enabled && strings.TrimSpace(c.Telemetry.Path) != "" {
		dirs = append(dirs, filepath.Dir(c.Telemetry.Path))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ProfileFor returns the energy profile configured for the given mode.
func (c *Config) ProfileFor(mode posture.Mode) (posture.EnergyProfile, bool) {
	entry, ok := c.Profiles[string(mode)]
	if !ok {
		return posture.EnergyProfile{}, false
	}
	return posture.EnergyProfile{
		FanProfile:    entry.FanProfile,
		PowerPlan:     entry.PowerPlan,
		GPUPowerWatts: entry.GPUPowerWatts,
		GPUClock:      entry.GPUClock,
	}, true
}

// PauseFlagPath returns the location of the training pause marker.
func (c *Config) PauseFlagPath() string {
	return filepath.Join(c.Paths.ControlDir, "pause.flag")
}

// GameModeFlagPath returns the location of the daemon's game-mode marker.
func (c *Config) GameModeFlagPath() string {
	return filepath.Join(c.Paths.ControlDir, "game_mode.flag")
}

// SocketPath returns the location of the daemon's IPC socket.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.LogDir, "governor.sock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
