package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/k3a/html2text"
	"github.com/spf13/cobra"

	"ghwatch/internal/app"
	"ghwatch/internal/render"
	logx "ghwatch/pkg/logx"
)

func newPreviewCommand(g *globalFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Fetch the feed once and print the newest notifications without sending them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if limit <= 0 {
				return errors.New("--limit must be positive")
			}
			cfgm, err := g.manager()
			if err != nil {
				return err
			}
			// Telegram settings are not needed here, so skip full validation.
			cfg, err := cfgm.Parse()
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.GitHub.Account) == "" {
				return errors.New("github account is not set")
			}
			gh, err := app.NewGitHubClient(cfg, nil, logx.Nop())
			if err != nil {
				return err
			}
			events, err := gh.Fetch(cmd.Context())
			if err != nil {
				return err
			}
			if len(events) > limit {
				events = events[:limit]
			}

			out := cmd.OutOrStdout()
			reg := render.NewRegistry()
			shown := 0
			// Oldest first, the order they would be sent in.
			for i := len(events) - 1; i >= 0; i-- {
				ev := events[i]
				p, ok, err := reg.Render(ev)
				switch {
				case !ok:
					fmt.Fprintf(out, "# %s %s: skipped\n\n", ev.ID, ev.Type)
					continue
				case err != nil:
					fmt.Fprintf(out, "# %s %s: %v\n\n", ev.ID, ev.Type, err)
					continue
				}
				fmt.Fprintf(out, "# %s %s\n%s\n", ev.ID, ev.Type, html2text.HTML2Text(p.Text))
				for _, l := range p.Links {
					fmt.Fprintf(out, "  [%s] %s\n", l.Label, l.URL)
				}
				fmt.Fprintln(out)
				shown++
			}
			fmt.Fprintf(out, "%d of %d events rendered\n", shown, len(events))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "number of newest events to render")
	return cmd
}
