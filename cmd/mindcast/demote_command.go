package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mindcast/internal/api"
)

func newDemoteCommand(ctx *commandContext) *cobra.Command {
	var targetFlag string

	cmd := &cobra.Command{
		Use:   "demote <key>",
		Short: "Demote a topic, unwinding its promotion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			result, raw, err := client.demote(cmd.Context(), args[0], api.DemoteRequest{Target: targetFlag})
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				printRawJSON(raw)
				return nil
			}
			fmt.Printf("demoted %s: %s -> %s",
				result.Topic.Key, result.PreviousStatus, result.NewStatus)
			if result.CancelledJobs > 0 {
				fmt.Printf(" (cancelled %d queued job(s))", result.CancelledJobs)
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().StringVar(&targetFlag, "target", "", "Status to land in (candidate or cold, default candidate)")
	return cmd
}
