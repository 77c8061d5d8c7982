package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"scribe/internal/ipc"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	var states []string

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List cataloged media files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.CatalogList(states)
				if err != nil {
					return err
				}
				stdout := cmd.OutOrStdout()
				if len(resp.Records) == 0 {
					fmt.Fprintln(stdout, "No matching catalog records")
					return nil
				}
				rows := make([][]string, 0, len(resp.Records))
				for _, record := range resp.Records {
					rows = append(rows, []string{
						strconv.FormatInt(record.ID, 10),
						record.State,
						record.Source,
						record.Path,
						record.ErrorMessage,
					})
				}
				fmt.Fprintln(stdout, renderTable(
					[]column{
						{name: "ID", numeric: true},
						{name: "State"},
						{name: "Source"},
						{name: "Path"},
						{name: "Detail"},
					},
					rows,
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&states, "state", nil,
		"Filter by state (discovered, queued, transcribing, committed, failed)")
	return cmd
}
