package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMissing is matched by *MissingError.
var ErrMissing = errors.New("missing required configuration")

// MissingError lists every required key that has no value.
type MissingError struct {
	Keys []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissing, strings.Join(e.Keys, ", "))
}

func (e *MissingError) Is(target error) bool { return target == ErrMissing }

const (
	DefaultSchedule     = "2m"
	DefaultMaxPerCycle  = 5
	DefaultHistorySize  = 100
	DefaultHTTPAddr     = "127.0.0.1:9310"
	defaultCallTimeout  = 10 * time.Second
	defaultPacing       = 2 * time.Second
	defaultDeliveredTTL = 24 * time.Hour
)

// ApplyDefaults fills unset optional fields.
func (c *Config) ApplyDefaults() {
	if strings.TrimSpace(c.Poll.Schedule) == "" {
		c.Poll.Schedule = DefaultSchedule
	}
	if c.Poll.MaxPerCycle <= 0 {
		c.Poll.MaxPerCycle = DefaultMaxPerCycle
	}
	if c.Poll.HistorySize <= 0 {
		c.Poll.HistorySize = DefaultHistorySize
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
	if c.HTTP.Enabled && strings.TrimSpace(c.HTTP.Addr) == "" {
		c.HTTP.Addr = DefaultHTTPAddr
	}
}

// Durations holds the parsed duration fields. Pacing and DeliveredTTL are
// zero when disabled.
type Durations struct {
	GitHubTimeout   time.Duration
	TelegramTimeout time.Duration
	Pacing          time.Duration
	DeliveredTTL    time.Duration
	HTTPRead        time.Duration
	HTTPWrite       time.Duration
	HTTPIdle        time.Duration
}

func (c *Config) Durations() (Durations, error) {
	var (
		d    Durations
		err  error
		errs []error
	)
	collect := func(e error) {
		if e != nil {
			errs = append(errs, e)
		}
	}

	d.GitHubTimeout, err = ParseDurationOrDefault("github.timeout", c.GitHub.Timeout, defaultCallTimeout)
	collect(err)
	d.TelegramTimeout, err = ParseDurationOrDefault("telegram.timeout", c.Telegram.Timeout, defaultCallTimeout)
	collect(err)
	d.Pacing, err = optionalDuration("poll.pacing", c.Poll.Pacing, defaultPacing)
	collect(err)
	d.DeliveredTTL, err = optionalDuration("poll.delivered_ttl", c.Poll.DeliveredTTL, defaultDeliveredTTL)
	collect(err)
	d.HTTPRead, err = ParseDurationOrDefault("http.read_timeout", c.HTTP.ReadTimeout, 5*time.Second)
	collect(err)
	d.HTTPWrite, err = ParseDurationField("http.write_timeout", c.HTTP.WriteTimeout)
	collect(err)
	d.HTTPIdle, err = ParseDurationOrDefault("http.idle_timeout", c.HTTP.IdleTimeout, 60*time.Second)
	collect(err)
	return d, errors.Join(errs...)
}

// optionalDuration returns def when raw is empty and zero for an explicit
// "0s".
func optionalDuration(path, raw string, def time.Duration) (time.Duration, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	return ParseDurationField(path, raw)
}

// Validate reports every problem at once: missing required keys first
// (as *MissingError), then malformed fields.
func (c *Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.GitHub.Account) == "" {
		missing = append(missing, "github.account ("+EnvAccount+")")
	}
	if strings.TrimSpace(c.Telegram.Token) == "" {
		missing = append(missing, "telegram.token ("+EnvTelegramToken+")")
	}
	if c.Telegram.ChatID == 0 {
		missing = append(missing, "telegram.chat_id ("+EnvChatID+")")
	}

	var errs []error
	if len(missing) > 0 {
		errs = append(errs, &MissingError{Keys: missing})
	}
	if c.GitHub.PerPage < 0 || c.GitHub.PerPage > 100 {
		errs = append(errs, fmt.Errorf("github.per_page: must be within 0..100"))
	}
	if c.Poll.MaxPerCycle < 0 {
		errs = append(errs, fmt.Errorf("poll.max_per_cycle: must be >= 0"))
	}
	if _, err := c.Durations(); err != nil {
		errs = append(errs, err)
	}
	if c.Poll.Timezone != "" {
		if _, err := time.LoadLocation(c.Poll.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("poll.timezone: %w", err))
		}
	}
	if c.Logging.File.Enabled && strings.TrimSpace(c.Logging.File.Path) == "" {
		errs = append(errs, fmt.Errorf("logging.file.path: required when file logging is enabled"))
	}
	if c.HTTP.Enabled && c.HTTP.Token == "" && !c.HTTP.AllowInsecure && !isLoopback(c.HTTP.Addr) {
		errs = append(errs, fmt.Errorf("http: non-loopback addr %q needs a token or allow_insecure", c.HTTP.Addr))
	}
	return errors.Join(errs...)
}

func isLoopback(addr string) bool {
	host := addr
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		host = addr[:i]
	}
	host = strings.Trim(host, "[]")
	switch host {
	case "127.0.0.1", "localhost", "::1":
		return true
	}
	return strings.HasPrefix(host, "127.")
}
