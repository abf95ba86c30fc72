package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"jobscout/internal/daemon"
	"jobscout/internal/pipeline"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status [session-id]",
		Short: "Show daemon status or one session's progress",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *daemon.Client) error {
				if len(args) == 0 {
					status, err := client.Status(cmd.Context())
					if err != nil {
						return err
					}
					if jsonOut {
						return writeJSON(cmd, status)
					}
					fmt.Fprintln(cmd.OutOrStdout(), renderDaemonStatus(status))
					return nil
				}

				progress, err := client.Progress(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, progress)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderProgress(progress))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit JSON output")
	return cmd
}

func renderDaemonStatus(status *daemon.Status) string {
	rows := [][]string{
		{"Running", yesNo(status.Running)},
		{"PID", fmt.Sprintf("%d", status.PID)},
		{"Started", formatTimestamp(status.StartedAt)},
		{"Sessions", fmt.Sprintf("%d", status.Sessions)},
		{"Snapshot dir", status.SnapshotDir},
		{"Postings DB", status.PostingsDBPath},
		{"Lock file", status.LockFilePath},
	}
	for _, component := range status.Components {
		state := "ready"
		if !component.Ready {
			state = "not ready"
		}
		if component.Detail != "" {
			state += " (" + component.Detail + ")"
		}
		rows = append(rows, []string{"Component " + component.Name, state})
	}
	return renderTable([]string{"Field", "Value"}, rows, nil)
}

func renderProgress(progress *pipeline.MultiStageProgress) string {
	var b strings.Builder
	fmt.Fprintf(&b, "session %s: %s, stage %s, %.1f%% overall",
		progress.SessionID, progress.Status, progress.CurrentStage, progress.OverallProgress)
	if eta := formatETA(progress.ETASeconds, progress.ETAConfidence); eta != "" {
		fmt.Fprintf(&b, ", ETA %s", eta)
	}
	b.WriteString("\n")

	rows := make([][]string, 0, len(pipeline.Stages()))
	for _, st := range pipeline.Stages() {
		sp, ok := progress.Stages[st]
		if !ok {
			continue
		}
		eta := formatETA(sp.ETASeconds, sp.ETAConfidence)
		if eta == "" && sp.Status == pipeline.StageStatusRunning {
			eta = "unknown"
		}
		rows = append(rows, []string{
			string(st),
			string(sp.Status),
			fmt.Sprintf("%.1f%%", sp.Progress),
			fmt.Sprintf("%d/%d", sp.ItemsProcessed, sp.ItemsTotal),
			eta,
		})
	}
	b.WriteString(renderTable(
		[]string{"Stage", "Status", "Progress", "Items", "ETA"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight},
	))

	if stats := progress.FilteringStats; stats != nil {
		fmt.Fprintf(&b, "\nfiltering: %d passed, %d skipped", stats.FilteredCount, stats.SkippedCount)
		for reason, count := range stats.Reasons {
			fmt.Fprintf(&b, "\n  %s: %d", reason, count)
		}
	}
	if len(progress.Errors) > 0 {
		b.WriteString("\nerrors:")
		for _, msg := range progress.Errors {
			fmt.Fprintf(&b, "\n  %s", msg)
		}
	}
	return b.String()
}

func formatETA(seconds, confidence *float64) string {
	if seconds == nil {
		return ""
	}
	duration := time.Duration(*seconds * float64(time.Second)).Round(time.Second)
	if confidence != nil {
		return fmt.Sprintf("%s (conf %.2f)", duration, *confidence)
	}
	return duration.String()
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
