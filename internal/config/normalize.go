package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeDetect()
	c.normalizeProfiles()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.ControlDir, err = expandPath(c.Paths.ControlDir); err != nil {
		return fmt.Errorf("paths.control_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Tools.FanProfilesDir, err = expandPath(c.Tools.FanProfilesDir); err != nil {
		return fmt.Errorf("tools.fan_profiles_dir: %w", err)
	}
	if c.Tools.FanActiveProfile, err = expandPath(c.Tools.FanActiveProfile); err != nil {
		return fmt.Errorf("tools.fan_active_profile: %w", err)
	}
	if strings.TrimSpace(c.Telemetry.Path) == "" {
		c.Telemetry.Path = defaultTelemetryPath
	}
	if c.Telemetry.Path, err = expandPath(c.Telemetry.Path); err != nil {
		return fmt.Errorf("telemetry.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeDetect() {
	c.Detect.Game.Names = cleanList(c.Detect.Game.Names)
	c.Detect.Game.Markers = cleanList(c.Detect.Game.Markers)
	c.Detect.Training.Names = cleanList(c.Detect.Training.Names)
	c.Detect.Training.Markers = cleanList(c.Detect.Training.Markers)
}

func (c *Config) normalizeProfiles() {
	normalized := make(map[string]Profile, len(c.Profiles))
	for name, entry := range c.Profiles {
		key := strings.ToLower(strings.TrimSpace(name))
		entry.FanProfile = strings.TrimSpace(entry.FanProfile)
		entry.PowerPlan = strings.TrimSpace(entry.PowerPlan)
		entry.GPUClock = strings.TrimSpace(entry.GPUClock)
		normalized[key] = entry
	}
	c.Profiles = normalized
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}
