package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"governor/internal/svctask"
)

func newServiceCommand(ctx *commandContext) *cobra.Command {
	serviceCmd := &cobra.Command{
		Use:   "service",
		Short: "Register or remove the daemon with the OS task scheduler",
	}

	serviceCmd.AddCommand(&cobra.Command{
		Use:   "install",
		Short: "Register the daemon to start at login",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			output, err := svctask.Install(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if trimmed := strings.TrimSpace(output); trimmed != "" {
				fmt.Fprintln(cmd.OutOrStdout(), trimmed)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Service installed")
			return nil
		},
	})

	serviceCmd.AddCommand(&cobra.Command{
		Use:   "uninstall",
		Short: "Remove the scheduler registration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			output, err := svctask.Uninstall(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if trimmed := strings.TrimSpace(output); trimmed != "" {
				fmt.Fprintln(cmd.OutOrStdout(), trimmed)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Service uninstalled")
			return nil
		},
	})

	return serviceCmd
}
