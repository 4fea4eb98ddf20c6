package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newSweepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one promotion sweep now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			result, raw, err := client.sweep(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				printRawJSON(raw)
				return nil
			}
			fmt.Printf("evaluated=%d promoted=%d skipped=%d failed=%d\n",
				result["evaluated"], result["promoted"], result["skipped"], result["failed"])
			return nil
		},
	}
}

func newRemasterCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remaster",
		Short: "Run one remaster worker pass now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			result, raw, err := client.remaster(cmd.Context())
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				printRawJSON(raw)
				return nil
			}
			fmt.Printf("processed=%d succeeded=%d failed=%d\n",
				result["processed"], result["succeeded"], result["failed"])
			return nil
		},
	}
}
