package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			status, raw, err := client.status(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				printRawJSON(raw)
				return nil
			}
			fmt.Printf("running: %v (pid %d)\n", status.Running, status.PID)
			fmt.Printf("database: %s\n", status.DatabasePath)
			fmt.Printf("lock file: %s\n", status.LockFilePath)
			fmt.Printf("scheduler: %v\n", status.SchedulerEnabled)
			if status.DroppedEvents > 0 {
				fmt.Printf("dropped usage events: %d\n", status.DroppedEvents)
			}
			return nil
		},
	}
}
