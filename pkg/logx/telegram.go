package logx

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Sender delivers one plain-text log line to a chat.
type Sender interface {
	SendPlain(ctx context.Context, chatID int64, text string) error
}

type telegramItem struct {
	chatID int64
	msg    string
}

// telegramSink is a zerolog.LevelWriter that mirrors records into a chat.
// Writes never block: records are rate limited, queued and dropped when the
// queue is full.
type telegramSink struct {
	sender Sender
	queue  chan telegramItem

	once   sync.Once
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	chatID   int64
	minLevel zerolog.Level
	limiter  *rate.Limiter
}

func newTelegramSink(sender Sender) *telegramSink {
	return &telegramSink{sender: sender, queue: make(chan telegramItem, 256)}
}

// apply reconfigures the sink and reports whether it should be attached.
func (t *telegramSink) apply(cfg TelegramConfig) bool {
	if !cfg.Enabled || t.sender == nil {
		return false
	}
	rps := cfg.RatePerSec
	if rps < 1 {
		rps = 1
	}
	t.mu.Lock()
	t.chatID = cfg.ChatID
	t.minLevel = parseLevel(cfg.MinLevel, zerolog.WarnLevel)
	t.limiter = rate.NewLimiter(rate.Limit(rps), rps)
	t.mu.Unlock()

	t.once.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		t.cancel = cancel
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			t.worker(ctx)
		}()
	})
	return true
}

func (t *telegramSink) stop() {
	if t == nil || t.cancel == nil {
		return
	}
	t.cancel()
	t.wg.Wait()
}

func (t *telegramSink) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case it := <-t.queue:
			cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			_ = t.sender.SendPlain(cctx, it.chatID, it.msg)
			cancel()
		}
	}
}

func (t *telegramSink) Write(p []byte) (int, error) {
	return t.WriteLevel(zerolog.InfoLevel, p)
}

func (t *telegramSink) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	t.mu.Lock()
	chatID := t.chatID
	lim := t.limiter
	minLevel := t.minLevel
	t.mu.Unlock()

	if chatID == 0 || lim == nil || level < minLevel || !lim.Allow() {
		return len(p), nil
	}
	msg := formatRecord(p)
	if msg == "" {
		return len(p), nil
	}
	select {
	case t.queue <- telegramItem{chatID: chatID, msg: msg}:
	default:
	}
	return len(p), nil
}

// formatRecord renders a zerolog JSON line as "[LEVEL] message" followed by
// one "- key=value" line per field, keys sorted.
func formatRecord(p []byte) string {
	m, ok := decodeRecord(p)
	if !ok {
		return truncate(strings.TrimSpace(string(p)), 3500)
	}

	lvl, _ := m["level"].(string)
	msg, _ := m["message"].(string)

	var b strings.Builder
	if lvl != "" {
		b.WriteString("[")
		b.WriteString(strings.ToUpper(lvl))
		b.WriteString("] ")
	}
	b.WriteString(msg)

	keys := make([]string, 0, len(m))
	for k := range m {
		switch k {
		case "time", "level", "message":
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString("\n- ")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(truncate(fmt.Sprint(m[k]), 600))
	}
	return truncate(b.String(), 3500)
}

func decodeRecord(p []byte) (map[string]any, bool) {
	var m map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(p))), &m); err != nil {
		return nil, false
	}
	return m, true
}
