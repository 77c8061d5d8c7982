package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"scribe/internal/ipc"
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the transcription pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Start()
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if resp.Started {
					fmt.Fprintln(stdout, "Pipeline started")
					return nil
				}
				if strings.TrimSpace(resp.Message) != "" {
					fmt.Fprintln(stdout, resp.Message)
					return nil
				}
				fmt.Fprintln(stdout, "Pipeline did not start")
				return nil
			})
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the transcription pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Stop(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Pipeline stopped")
				return nil
			})
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and catalog status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Status()
				if err != nil {
					return err
				}
				renderStatus(cmd, resp)
				return nil
			})
		},
	}

	return []*cobra.Command{startCmd, stopCmd, statusCmd}
}

func renderStatus(cmd *cobra.Command, resp *ipc.StatusResponse) {
	stdout := cmd.OutOrStdout()
	colorize := shouldColorize(stdout)

	fmt.Fprintln(stdout, sectionHeading("Daemon", colorize))
	runningKind := statusError
	runningText := "stopped"
	if resp.Running {
		runningKind = statusOK
		runningText = fmt.Sprintf("pid %d", resp.PID)
	}
	fmt.Fprintln(stdout, renderStatusLine("Pipeline", runningKind, runningText, colorize))
	fmt.Fprintln(stdout, renderStatusLine("Watch dir", statusInfo, resp.WatchDir, colorize))
	fmt.Fprintln(stdout, renderStatusLine("Catalog", statusInfo, resp.CatalogPath, colorize))
	fmt.Fprintln(stdout, renderStatusLine("Log file", statusInfo, resp.LogPath, colorize))
	fmt.Fprintln(stdout, renderStatusLine("Workers", statusInfo, strconv.Itoa(resp.Workers), colorize))
	fmt.Fprintln(stdout, renderStatusLine("Queue depth", statusInfo, strconv.Itoa(resp.QueueDepth), colorize))
	fmt.Fprintln(stdout)

	fmt.Fprintln(stdout, sectionHeading("Catalog", colorize))
	rows := buildCatalogRows(resp.Catalog)
	if len(rows) == 0 {
		fmt.Fprintln(stdout, "Catalog is empty")
	} else {
		fmt.Fprintln(stdout, renderTable([]column{{name: "State"}, {name: "Count", numeric: true}}, rows))
	}

	if resp.Events.Dropped > 0 {
		fmt.Fprintln(stdout)
		detail := fmt.Sprintf("%d events dropped from the status buffer", resp.Events.Dropped)
		fmt.Fprintln(stdout, renderStatusLine("Events", statusWarn, detail, colorize))
	}
}

func buildCatalogRows(counts ipc.CatalogCounts) [][]string {
	if counts.Total == 0 {
		return nil
	}
	type entry struct {
		label string
		count int
	}
	entries := []entry{
		{"discovered", counts.Discovered},
		{"queued", counts.Queued},
		{"transcribing", counts.Transcribing},
		{"committed", counts.Committed},
		{"failed", counts.Failed},
	}
	rows := make([][]string, 0, len(entries)+1)
	for _, e := range entries {
		if e.count == 0 {
			continue
		}
		rows = append(rows, []string{e.label, strconv.Itoa(e.count)})
	}
	rows = append(rows, []string{"total", strconv.Itoa(counts.Total)})
	return rows
}
