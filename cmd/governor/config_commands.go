package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"governor/internal/config"
	"governor/internal/posture"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigValidateCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the detect filters and power plan GUIDs for this machine before running the daemon.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Validate configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load("")
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", path)
			if !exists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprintf(out, "Configuration valid (%d profiles)\n", len(cfg.Profiles))
			return nil
		},
	}
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Poll interval:    %ds\n", cfg.Workflow.PollInterval)
			fmt.Fprintf(out, "Min samples:      %d\n", cfg.Workflow.MinSamples)
			fmt.Fprintf(out, "Command timeout:  %ds\n", cfg.Workflow.CommandTimeout)
			fmt.Fprintf(out, "Control dir:      %s\n", cfg.Paths.ControlDir)
			fmt.Fprintf(out, "Log dir:          %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "Game processes:   %s\n", strings.Join(cfg.Detect.Game.Names, ", "))
			fmt.Fprintf(out, "Train processes:  %s\n", strings.Join(cfg.Detect.Training.Names, ", "))
			if len(cfg.Detect.Training.Markers) > 0 {
				fmt.Fprintf(out, "Train markers:    %s\n", strings.Join(cfg.Detect.Training.Markers, ", "))
			}

			rows := make([][]string, 0, len(cfg.Profiles))
			for _, mode := range posture.Modes() {
				profile, ok := cfg.Profiles[string(mode)]
				if !ok {
					continue
				}
				gpu := "reset"
				if profile.GPUPowerWatts > 0 {
					gpu = fmt.Sprintf("%dW", profile.GPUPowerWatts)
				}
				if profile.GPUClock != "" {
					gpu += " @ " + profile.GPUClock
				}
				rows = append(rows, []string{
					modeLabel(mode),
					profile.FanProfile,
					profile.PowerPlan,
					gpu,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Mode", "Fan profile", "Power plan", "GPU"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}
}
