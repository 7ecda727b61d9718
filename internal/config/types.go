package config

// Config is the whole runtime configuration. The file is optional; the
// environment fills and overrides it (see ApplyEnv).
type Config struct {
	GitHub   GitHubConfig   `json:"github"`
	Telegram TelegramConfig `json:"telegram"`
	Poll     PollConfig     `json:"poll"`
	Logging  LoggingConfig  `json:"logging"`
	HTTP     HTTPConfig     `json:"http,omitempty"`
	Sentry   SentryConfig   `json:"sentry,omitempty"`
}

type GitHubConfig struct {
	// Account is the watched user login. Required.
	Account string `json:"account"`
	// Token is optional; it raises the API rate limit. Never logged.
	Token   string `json:"token,omitempty"`
	BaseURL string `json:"base_url,omitempty"`
	PerPage int    `json:"per_page,omitempty"`
	// Timeout is a Go duration string. Default "10s".
	Timeout string `json:"timeout,omitempty"`
}

type TelegramConfig struct {
	Token    string `json:"token"`
	ChatID   int64  `json:"chat_id"`
	ThreadID int    `json:"thread_id,omitempty"`
	BaseURL  string `json:"base_url,omitempty"`
	// Timeout is a Go duration string. Default "10s".
	Timeout string `json:"timeout,omitempty"`
	// LinkPreview enables Telegram link previews (off by default).
	LinkPreview bool `json:"link_preview,omitempty"`
}

// PollConfig controls the cycle. Defaults:
//   - schedule: "2m" (Go duration, HH:MM or cron expression)
//   - max_per_cycle: 5
//   - pacing: "2s"
//   - delivered_ttl: "24h" ("0s" disables the delivered-id guard)
//   - history_size: 100
type PollConfig struct {
	Schedule     string `json:"schedule,omitempty"`
	Timezone     string `json:"timezone,omitempty"`
	MaxPerCycle  int    `json:"max_per_cycle,omitempty"`
	Pacing       string `json:"pacing,omitempty"`
	DeliveredTTL string `json:"delivered_ttl,omitempty"`
	HistorySize  int    `json:"history_size,omitempty"`
}

type LoggingConfig struct {
	Level string `json:"level,omitempty"`
	// Console is on unless explicitly disabled.
	Console  *bool           `json:"console,omitempty"`
	File     LoggingFile     `json:"file,omitempty"`
	Telegram LoggingTelegram `json:"telegram,omitempty"`
}

func (l LoggingConfig) ConsoleEnabled() bool { return l.Console == nil || *l.Console }

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoggingTelegram mirrors warnings and errors into a chat (the notification
// chat when chat_id is 0).
type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ChatID     int64  `json:"chat_id,omitempty"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}

// HTTPConfig controls the optional status server (/metrics, /healthz,
// /status and pprof).
//
// Bind to loopback, or set a token, or explicitly allow_insecure.
type HTTPConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`  // default "127.0.0.1:9310"
	Token         string `json:"token,omitempty"` // bearer token, never logged
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	Pprof         bool   `json:"pprof,omitempty"`

	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}

type SentryConfig struct {
	DSN         string  `json:"dsn,omitempty"`
	Environment string  `json:"environment,omitempty"`
	MinLevel    string  `json:"min_level,omitempty"`
	SampleRate  float64 `json:"sample_rate,omitempty"`
}

func (s SentryConfig) Enabled() bool { return s.DSN != "" }
