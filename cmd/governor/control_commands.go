package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"governor/internal/ipc"
	"governor/internal/posture"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon mode, signals, and pending subsystems",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				renderStatus(cmd, status)
				return nil
			})
		},
	}
}

func renderStatus(cmd *cobra.Command, status *ipc.StatusResponse) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader("Governor", colorize) {
		fmt.Fprintln(out, line)
	}

	runningKind := statusError
	runningMsg := "stopped"
	if status.Running {
		runningKind = statusOK
		runningMsg = fmt.Sprintf("pid %d", status.PID)
	}
	fmt.Fprintln(out, renderStatusLine("Daemon", runningKind, runningMsg, colorize))
	fmt.Fprintln(out, renderStatusLine("Mode", modeKind(posture.Mode(status.Mode)), modeLabel(posture.Mode(status.Mode)), colorize))
	fmt.Fprintln(out, renderStatusLine("Game signal", boolKind(status.GameDetected), yesNo(status.GameDetected), colorize))
	fmt.Fprintln(out, renderStatusLine("Training signal", boolKind(status.TrainDetected), yesNo(status.TrainDetected), colorize))
	fmt.Fprintln(out, renderStatusLine("Training paused", statusInfo, yesNo(status.PausePresent), colorize))

	if len(status.Pending) > 0 {
		fmt.Fprintln(out, renderStatusLine("Pending", statusWarn, strings.Join(status.Pending, ", "), colorize))
	}
	if !status.LastTransition.IsZero() {
		detail := fmt.Sprintf("%s (%s ago)", status.LastTrigger, time.Since(status.LastTransition).Round(time.Second))
		fmt.Fprintln(out, renderStatusLine("Last transition", statusInfo, detail, colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Tick", statusInfo, fmt.Sprintf("%d", status.Tick), colorize))
	if status.RunID != "" {
		fmt.Fprintln(out, renderStatusLine("Run", statusInfo, status.RunID, colorize))
	}
}

func modeKind(mode posture.Mode) statusKind {
	switch mode {
	case posture.ModeGaming:
		return statusWarn
	case posture.ModeTraining:
		return statusOK
	default:
		return statusInfo
	}
}

func boolKind(value bool) statusKind {
	if value {
		return statusOK
	}
	return statusInfo
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Stop()
				if err != nil {
					return err
				}
				if !resp.Stopped {
					return fmt.Errorf("daemon did not confirm shutdown")
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon stopping")
				return nil
			})
		},
	}
}

func newPauseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Write the pause flag to suspend the training process",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Pause(true); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Pause flag set; training will suspend at its next checkpoint")
				return nil
			})
		},
	}
}

func newResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Remove the pause flag so the training process resumes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Pause(false); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Pause flag cleared")
				return nil
			})
		},
	}
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent mode transitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.History(limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(resp.Transitions) == 0 {
					fmt.Fprintln(out, "No transitions recorded")
					return nil
				}

				rows := make([][]string, 0, len(resp.Transitions))
				for _, tr := range resp.Transitions {
					rows = append(rows, []string{
						tr.OccurredAt.Local().Format("2006-01-02 15:04:05"),
						modeLabel(posture.Mode(tr.From)),
						modeLabel(posture.Mode(tr.To)),
						tr.Trigger,
						summarizeOutcomes(tr.Outcomes),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"When", "From", "To", "Trigger", "Outcomes"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of transitions to show")
	return cmd
}

func summarizeOutcomes(outcomes map[string]string) string {
	if len(outcomes) == 0 {
		return ""
	}
	var failures []string
	for _, subsystem := range posture.Subsystems() {
		outcome, ok := outcomes[string(subsystem)]
		if !ok || outcome == "ok" || outcome == "" {
			continue
		}
		failures = append(failures, fmt.Sprintf("%s: %s", subsystem, outcome))
	}
	if len(failures) == 0 {
		return "all ok"
	}
	return strings.Join(failures, "; ")
}
