package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"ghwatch/internal/scheduler"
)

func newValidateCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and print the effective settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgm, err := g.manager()
			if err != nil {
				return err
			}
			cfg, err := cfgm.Load()
			if err != nil {
				return err
			}
			spec, err := scheduler.ParseSchedule(cfg.Poll.Schedule)
			if err != nil {
				return fmt.Errorf("poll.schedule: %w", err)
			}
			d, err := cfg.Durations()
			if err != nil {
				return err
			}

			source := cfgm.Path()
			if source == "" {
				source = "environment"
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "source\t%s\n", source)
			fmt.Fprintf(w, "account\t%s\n", cfg.GitHub.Account)
			fmt.Fprintf(w, "github token\t%s\n", present(cfg.GitHub.Token))
			fmt.Fprintf(w, "chat\t%d\n", cfg.Telegram.ChatID)
			fmt.Fprintf(w, "schedule\t%s\n", spec)
			fmt.Fprintf(w, "max per cycle\t%d\n", cfg.Poll.MaxPerCycle)
			fmt.Fprintf(w, "pacing\t%s\n", d.Pacing)
			fmt.Fprintf(w, "http\t%s\n", httpSummary(cfg.HTTP.Enabled, cfg.HTTP.Addr))
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "config ok")
			return nil
		},
	}
}

func present(s string) string {
	if s == "" {
		return "not set"
	}
	return "set"
}

func httpSummary(enabled bool, addr string) string {
	if !enabled {
		return "disabled"
	}
	return addr
}
