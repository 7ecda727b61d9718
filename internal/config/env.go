package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that override the file.
const (
	EnvAccount       = "GITHUB_USERNAME"
	EnvGitHubToken   = "GITHUB_TOKEN"
	EnvTelegramToken = "TELEGRAM_BOT_TOKEN"
	EnvChatID        = "TELEGRAM_CHAT_ID"
	EnvLogLevel      = "GHWATCH_LOG_LEVEL"
	EnvSentryDSN     = "SENTRY_DSN"
)

// LoadEnv loads dotenv files into the process environment without overriding
// variables that are already set. With no arguments it tries ./.env; missing
// files are ignored.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides cfg with non-empty environment values read through
// lookup (os.LookupEnv when nil).
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(k string) (string, bool) {
		v, ok := lookup(k)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get(EnvAccount); ok {
		cfg.GitHub.Account = v
	}
	if v, ok := get(EnvGitHubToken); ok {
		cfg.GitHub.Token = v
	}
	if v, ok := get(EnvTelegramToken); ok {
		cfg.Telegram.Token = v
	}
	if v, ok := get(EnvChatID); ok {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: invalid chat id %q", EnvChatID, v)
		}
		cfg.Telegram.ChatID = id
	}
	if v, ok := get(EnvLogLevel); ok {
		cfg.Logging.Level = v
	}
	if v, ok := get(EnvSentryDSN); ok {
		cfg.Sentry.DSN = v
	}
	return nil
}
