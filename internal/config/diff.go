package config

import (
	"reflect"

	logx "ghwatch/pkg/logx"
)

// SummarizeChange compares two configs. It returns the changed sections, safe
// attrs for logging (secrets are reduced to "set" flags), and the sections
// whose change only takes effect after a restart.
func SummarizeChange(oldCfg, newCfg *Config) (changed []string, attrs []logx.Field, restart []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	if oldCfg.GitHub != newCfg.GitHub {
		changed = append(changed, "github")
		restart = append(restart, "github")
		attrs = append(attrs,
			logx.String("github.account", newCfg.GitHub.Account),
			logx.Bool("github.token_set", newCfg.GitHub.Token != ""),
		)
	}
	if oldCfg.Telegram != newCfg.Telegram {
		changed = append(changed, "telegram")
		restart = append(restart, "telegram")
		attrs = append(attrs, logx.Int64("telegram.chat_id", newCfg.Telegram.ChatID))
	}

	if oldCfg.Poll != newCfg.Poll {
		changed = append(changed, "poll")
		attrs = append(attrs,
			logx.String("poll.schedule", newCfg.Poll.Schedule),
			logx.Int("poll.max_per_cycle", newCfg.Poll.MaxPerCycle),
			logx.String("poll.pacing", newCfg.Poll.Pacing),
		)
		if oldCfg.Poll.Schedule != newCfg.Poll.Schedule ||
			oldCfg.Poll.Timezone != newCfg.Poll.Timezone ||
			oldCfg.Poll.DeliveredTTL != newCfg.Poll.DeliveredTTL ||
			oldCfg.Poll.HistorySize != newCfg.Poll.HistorySize {
			restart = append(restart, "poll")
		}
	}

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.ConsoleEnabled()),
			logx.Bool("logging.file", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram", newCfg.Logging.Telegram.Enabled),
		)
	}

	if oldCfg.HTTP != newCfg.HTTP {
		changed = append(changed, "http")
		restart = append(restart, "http")
		attrs = append(attrs,
			logx.Bool("http.enabled", newCfg.HTTP.Enabled),
			logx.String("http.addr", newCfg.HTTP.Addr),
			logx.Bool("http.token_set", newCfg.HTTP.Token != ""),
		)
	}
	if oldCfg.Sentry != newCfg.Sentry {
		changed = append(changed, "sentry")
		restart = append(restart, "sentry")
		attrs = append(attrs, logx.Bool("sentry.enabled", newCfg.Sentry.Enabled()))
	}
	return changed, attrs, restart
}
