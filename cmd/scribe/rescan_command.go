package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scribe/internal/ipc"
)

func newRescanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rescan",
		Short: "Sweep the watch directory for new media now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Rescan(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Rescan requested")
				return nil
			})
		},
	}
}
