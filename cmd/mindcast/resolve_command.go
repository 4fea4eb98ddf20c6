package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mindcast/internal/api"
)

func newResolveCommand(ctx *commandContext) *cobra.Command {
	var userFlag string
	var typeFlag string

	cmd := &cobra.Command{
		Use:   "resolve <topic>",
		Short: "Route a topic request through the canon cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			resolution, raw, err := client.resolve(cmd.Context(), api.ResolveRequest{
				Topic:  args[0],
				UserID: userFlag,
				Type:   typeFlag,
			})
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				printRawJSON(raw)
				return nil
			}
			if resolution.CacheHit {
				fmt.Printf("cache hit: %s serves episode %s\n",
					resolution.Topic.Key, resolution.Episode.ID)
				fmt.Printf("audio: %s\n", resolution.Episode.AudioURL)
			} else {
				fmt.Printf("cache miss: %s is %s, generate fresh\n",
					resolution.Topic.Key, resolution.Topic.Status)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&userFlag, "user", "u", "", "Requesting user id")
	cmd.Flags().StringVarP(&typeFlag, "type", "t", "", "Request type (generate or playback)")
	return cmd
}
