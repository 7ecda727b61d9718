package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"ghwatch/internal/app"
)

const stopTimeout = 15 * time.Second

func newRunCommand(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start polling and notifying (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgm, err := g.manager()
			if err != nil {
				return err
			}
			if _, err := cfgm.Load(); err != nil {
				return err
			}

			a, err := app.New(cfgm, app.Options{Version: version})
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if err := a.Start(ctx); err != nil {
				return err
			}

			select {
			case <-ctx.Done():
			case <-a.Done():
			}

			stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
			defer cancel()
			stopErr := a.Stop(stopCtx)
			if err := a.Err(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return stopErr
		},
	}
}
