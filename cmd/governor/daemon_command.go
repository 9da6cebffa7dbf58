package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"governor/internal/config"
	"governor/internal/daemonrun"
)

// loopOverrides holds command-line overrides for the polling configuration.
// Zero values and empty slices leave the loaded config untouched.
type loopOverrides struct {
	logLevel      string
	pollInterval  int
	minSamples    int
	gameNames     []string
	trainingNames []string
}

func (o *loopOverrides) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.logLevel, "log-level", "", "Override the configured log level (debug, info, warn, error)")
	cmd.Flags().IntVar(&o.pollInterval, "poll-interval", 0, "Override the poll interval in seconds")
	cmd.Flags().IntVar(&o.minSamples, "min-samples", 0, "Override the debounce sample count")
	cmd.Flags().StringSliceVar(&o.gameNames, "game", nil, "Override the game process names")
	cmd.Flags().StringSliceVar(&o.trainingNames, "training", nil, "Override the training process names")
}

func (o *loopOverrides) apply(cfg *config.Config) error {
	if o.pollInterval > 0 {
		cfg.Workflow.PollInterval = o.pollInterval
	}
	if o.minSamples > 0 {
		cfg.Workflow.MinSamples = o.minSamples
	}
	if names := trimNames(o.gameNames); len(names) > 0 {
		cfg.Detect.Game.Names = names
	}
	if names := trimNames(o.trainingNames); len(names) > 0 {
		cfg.Detect.Training.Names = names
	}
	return cfg.Validate()
}

func trimNames(values []string) []string {
	names := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	return names
}

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	var overrides loopOverrides

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the governor daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := overrides.apply(cfg); err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{LogLevel: overrides.logLevel})
		},
	}
	overrides.register(cmd)
	return cmd
}

func newOnceCommand(ctx *commandContext) *cobra.Command {
	var overrides loopOverrides

	cmd := &cobra.Command{
		Use:   "once",
		Short: "Observe, decide, and actuate a single pass, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := overrides.apply(cfg); err != nil {
				return err
			}
			status, err := daemonrun.RunOnce(cmd.Context(), cfg, daemonrun.Options{LogLevel: overrides.logLevel})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Mode: %s\n", modeLabel(status.Mode))
			fmt.Fprintf(out, "Game detected: %s\n", yesNo(status.Signals.Game))
			fmt.Fprintf(out, "Training detected: %s\n", yesNo(status.Signals.Training))
			if len(status.Pending) > 0 {
				fmt.Fprintf(out, "Pending subsystems: %v\n", status.Pending)
			}
			return nil
		},
	}
	overrides.register(cmd)
	return cmd
}
