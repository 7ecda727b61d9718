package logx

import (
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
)

// sentryWriter forwards records at or above min to the current sentry hub.
// sentry.Init must have been called; otherwise CaptureEvent is a no-op.
type sentryWriter struct {
	min zerolog.Level
}

func (w *sentryWriter) Write(p []byte) (int, error) {
	return w.WriteLevel(zerolog.InfoLevel, p)
}

func (w *sentryWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < w.min {
		return len(p), nil
	}
	m, ok := decodeRecord(p)
	if !ok {
		return len(p), nil
	}

	ev := sentry.NewEvent()
	ev.Level = sentryLevel(level)
	ev.Message, _ = m["message"].(string)
	if comp, ok := m["comp"].(string); ok {
		ev.Tags = map[string]string{"comp": comp}
	}
	extra := sentry.Context{}
	for k, v := range m {
		switch k {
		case "time", "level", "message":
			continue
		}
		extra[k] = v
	}
	ev.Contexts = map[string]sentry.Context{"log": extra}
	if errText, ok := m["err"].(string); ok && strings.TrimSpace(errText) != "" {
		ev.Message = ev.Message + ": " + errText
	}
	sentry.CaptureEvent(ev)
	return len(p), nil
}

func sentryLevel(l zerolog.Level) sentry.Level {
	switch {
	case l >= zerolog.FatalLevel:
		return sentry.LevelFatal
	case l >= zerolog.ErrorLevel:
		return sentry.LevelError
	case l >= zerolog.WarnLevel:
		return sentry.LevelWarning
	default:
		return sentry.LevelInfo
	}
}
