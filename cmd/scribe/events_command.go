package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"scribe/internal/ipc"
	"scribe/internal/status"
)

func newEventsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var limit int

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show recent pipeline events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				stdout := cmd.OutOrStdout()
				var since uint64
				first := true
				for {
					req := ipc.EventsRequest{Since: since, Limit: limit}
					if follow && !first {
						req.WaitMillis = 2000
					}
					first = false
					resp, err := client.Events(req)
					if err != nil {
						return err
					}
					for _, evt := range resp.Events {
						fmt.Fprintln(stdout, formatEvent(evt))
					}
					since = resp.Next
					if !follow {
						return nil
					}
					select {
					case <-cmd.Context().Done():
						return nil
					default:
					}
				}
			})
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep streaming new events")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum events per fetch")
	return cmd
}

func formatEvent(evt status.Event) string {
	parts := []string{
		evt.Timestamp.Format("15:04:05"),
		fmt.Sprintf("%-12s", string(evt.Type)),
	}
	if evt.Path != "" {
		parts = append(parts, evt.Path)
	}
	if evt.Detail != "" {
		parts = append(parts, "("+evt.Detail+")")
	}
	return strings.Join(parts, " ")
}
