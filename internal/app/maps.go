package app

import (
	"net/http"
	"strings"
	"time"

	"ghwatch/internal/config"
	"ghwatch/internal/github"
	"ghwatch/internal/monitor"
	"ghwatch/internal/observability/httpserver"
	"ghwatch/internal/transport/telegram"
	logx "ghwatch/pkg/logx"
)

func mapLogging(cfg *config.Config) logx.Config {
	chat := cfg.Logging.Telegram.ChatID
	if chat == 0 {
		chat = cfg.Telegram.ChatID
	}
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.ConsoleEnabled(),
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ChatID:     chat,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
		Sentry: logx.SentryConfig{
			Enabled:  cfg.Sentry.Enabled(),
			MinLevel: cfg.Sentry.MinLevel,
		},
	}
}

// NewGitHubClient maps the github section onto a feed client.
func NewGitHubClient(cfg *config.Config, rt http.RoundTripper, log logx.Logger) (*github.Client, error) {
	d, err := cfg.Durations()
	if err != nil {
		return nil, err
	}
	return github.NewClient(github.Config{
		BaseURL:   cfg.GitHub.BaseURL,
		Account:   strings.TrimSpace(cfg.GitHub.Account),
		Token:     cfg.GitHub.Token,
		PerPage:   cfg.GitHub.PerPage,
		Timeout:   d.GitHubTimeout,
		Transport: rt,
	}, log)
}

func newTelegramClient(cfg *config.Config, d config.Durations, rt http.RoundTripper, log logx.Logger) (*telegram.Client, error) {
	return telegram.New(telegram.Config{
		Token:          cfg.Telegram.Token,
		ChatID:         cfg.Telegram.ChatID,
		ThreadID:       cfg.Telegram.ThreadID,
		BaseURL:        cfg.Telegram.BaseURL,
		Timeout:        d.TelegramTimeout,
		DisablePreview: !cfg.Telegram.LinkPreview,
		Transport:      rt,
	}, log)
}

// disabledAsNegative maps the config convention (zero = off) onto the
// monitor's (negative = off, zero = default).
func disabledAsNegative(d time.Duration) time.Duration {
	if d == 0 {
		return -1
	}
	return d
}

func mapMonitor(cfg *config.Config, d config.Durations) monitor.Config {
	return monitor.Config{
		Account:      strings.TrimSpace(cfg.GitHub.Account),
		MaxPerCycle:  cfg.Poll.MaxPerCycle,
		Pacing:       disabledAsNegative(d.Pacing),
		DeliveredTTL: disabledAsNegative(d.DeliveredTTL),
		HistorySize:  cfg.Poll.HistorySize,
	}
}

func mapHTTP(cfg *config.Config, d config.Durations) httpserver.Config {
	return httpserver.Config{
		Addr:          cfg.HTTP.Addr,
		Token:         cfg.HTTP.Token,
		AllowInsecure: cfg.HTTP.AllowInsecure,
		Pprof:         cfg.HTTP.Pprof,
		ReadTimeout:   d.HTTPRead,
		WriteTimeout:  d.HTTPWrite,
		IdleTimeout:   d.HTTPIdle,
	}
}
