package main

import (
	"github.com/spf13/cobra"

	"ghwatch/internal/config"
)

type globalFlags struct {
	configPath string
	envFiles   []string
}

func newRootCommand() *cobra.Command {
	g := &globalFlags{}
	run := newRunCommand(g)

	root := &cobra.Command{
		Use:   "ghwatch",
		Short: "Relay a GitHub account's public activity to a Telegram chat",
		Long: `ghwatch polls the public event feed of one GitHub account and posts a
formatted Telegram message for every new event it sees.

Configuration comes from an optional YAML/JSON file and the environment
(GITHUB_USERNAME, GITHUB_TOKEN, TELEGRAM_BOT_TOKEN, TELEGRAM_CHAT_ID).`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          run.RunE,
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "config file (yaml or json); environment only when empty")
	root.PersistentFlags().StringSliceVar(&g.envFiles, "env-file", []string{".env"}, "dotenv files loaded before reading the environment")

	root.AddCommand(run, newValidateCommand(g), newPreviewCommand(g))
	return root
}

// manager loads dotenv files and returns a config manager for the chosen
// source. Nothing is parsed yet.
func (g *globalFlags) manager() (*config.ConfigManager, error) {
	if err := config.LoadEnv(g.envFiles...); err != nil {
		return nil, err
	}
	return config.NewConfigManager(g.configPath), nil
}
