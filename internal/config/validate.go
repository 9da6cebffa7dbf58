package config

import (
	"errors"
	"fmt"
	"strings"

	"governor/internal/posture"
)

// Validate ensures the configuration is usable. Validation failures are fatal
// at startup; the daemon never enters the control loop on a bad config.
func (c *Config) Validate() error {
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateDetect(); err != nil {
		return err
	}
	if err := c.validateTools(); err != nil {
		return err
	}
	if err := c.validateProfiles(); err != nil {
		return err
	}
	if err := c.validateTelemetry(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.PollInterval <= 0 {
		return errors.New("workflow.poll_interval must be positive (seconds)")
	}
	if c.Workflow.MinSamples < 1 {
		return errors.New("workflow.min_samples must be >= 1")
	}
	if c.Workflow.CommandTimeout <= 0 {
		return errors.New("workflow.command_timeout must be positive (seconds)")
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.ControlDir) == "" {
		return errors.New("paths.control_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateDetect() error {
	if len(c.Detect.Game.Names) == 0 && len(c.Detect.Training.Names) == 0 {
		return errors.New("detect: at least one game or training process name must be configured")
	}
	return nil
}

func (c *Config) validateTools() error {
	if len(c.Tools.PowerPlan) == 0 {
		return errors.New("tools.power_plan must name the power-plan command")
	}
	if len(c.Tools.GPU) == 0 {
		return errors.New("tools.gpu must name the GPU control command")
	}
	return nil
}

func (c *Config) validateProfiles() error {
	for _, mode := range posture.Modes() {
		entry, ok := c.Profiles[string(mode)]
		if !ok {
			return fmt.Errorf("profile.%s is required", mode)
		}
		if entry.GPUPowerWatts < 0 {
			return fmt.Errorf("profile.%s.gpu_power_watts must be >= 0", mode)
		}
		if entry.PowerPlan == "" {
			return fmt.Errorf("profile.%s.power_plan must be set", mode)
		}
	}
	for name := range c.Profiles {
		if _, ok := posture.ParseMode(name); !ok {
			return fmt.Errorf("profile.%s does not match a known mode (idle, training, gaming)", name)
		}
	}
	return nil
}

func (c *Config) validateTelemetry() error {
	if !c.Telemetry.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Telemetry.Path) == "" {
		return errors.New("telemetry.path must be set when telemetry.enabled is true")
	}
	if c.Telemetry.SampleEvery < 1 {
		return errors.New("telemetry.sample_every must be >= 1")
	}
	return nil
}
