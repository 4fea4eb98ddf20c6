package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mindcast/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newConfigInitCommand(ctx))
	cmd.AddCommand(newConfigShowCommand(ctx))
	return cmd
}

func newConfigInitCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a sample configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := *ctx.configFlag
			if path == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return err
				}
				path = defaultPath
			}
			if err := config.WriteSample(path); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			fmt.Printf("config file: %s\n", ctx.configPath)
			fmt.Printf("data dir: %s\n", cfg.Paths.DataDir)
			fmt.Printf("log dir: %s\n", cfg.Paths.LogDir)
			fmt.Printf("api bind: %s\n", cfg.Paths.APIBind)
			fmt.Printf("thresholds: sweep_min_requests=%d min_requests=%d min_users=%d min_completion=%.2f min_save_rate=%.2f min_score=%.2f\n",
				cfg.Thresholds.SweepMinRequests,
				cfg.Thresholds.MinRequests,
				cfg.Thresholds.MinUsers,
				cfg.Thresholds.MinCompletion,
				cfg.Thresholds.MinSaveRate,
				cfg.Thresholds.MinScore,
			)
			fmt.Printf("generation: model=%s target_minutes=%d\n",
				cfg.Generation.Model, cfg.Generation.TargetMinutes)
			fmt.Printf("audio: voice=%s\n", cfg.Audio.Voice)
			fmt.Printf("scheduler: enabled=%v sweep=%q remaster=%q\n",
				cfg.Scheduler.Enabled, cfg.Scheduler.SweepSpec, cfg.Scheduler.RemasterSpec)
			return nil
		},
	}
}
