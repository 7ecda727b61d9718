package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"ghwatch/internal/render"
	logx "ghwatch/pkg/logx"
)

// ErrNotOK is matched by every *APIError.
var ErrNotOK = errors.New("telegram request failed")

// APIError is a non-2xx answer from the Bot API.
type APIError struct {
	StatusCode  int
	Code        int
	Description string
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("telegram: http %d: %s", e.StatusCode, e.Description)
	}
	return fmt.Sprintf("telegram: http %d", e.StatusCode)
}

func (e *APIError) Is(target error) bool { return target == ErrNotOK }

type Config struct {
	Token  string
	ChatID int64
	// ThreadID targets a forum topic (0 = none).
	ThreadID int
	// BaseURL defaults to https://api.telegram.org.
	BaseURL string
	// Timeout bounds one Bot API call. Defaults to 10s.
	Timeout        time.Duration
	DisablePreview bool
	Transport      http.RoundTripper
}

// Client is the notification sink: one bounded Bot API call per Send, no
// retries.
type Client struct {
	cfg Config
	bot *tele.Bot
	log logx.Logger
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat id is empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = tele.DefaultApiURL
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		URL:    strings.TrimRight(cfg.BaseURL, "/"),
		Client: &http.Client{Timeout: cfg.Timeout, Transport: &statusTransport{base: cfg.Transport}},
		// The sink only sends; skip the getMe round trip and never poll.
		Offline: true,
	})
	if err != nil {
		return nil, err
	}
	return &Client{cfg: cfg, bot: b, log: log}, nil
}

// Send delivers one rendered notification to the configured chat.
func (c *Client) Send(ctx context.Context, p render.Payload) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	opt := &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: c.cfg.DisablePreview,
		ThreadID:              c.cfg.ThreadID,
	}
	if rm := inlineKeyboard(p.Links); rm != nil {
		opt.ReplyMarkup = rm
	}

	start := time.Now()
	msg, err := c.bot.Send(tele.ChatID(c.cfg.ChatID), p.Text, opt)
	if err != nil {
		return fmt.Errorf("telegram send %s: %w", p.Kind, err)
	}
	c.log.Debug("message sent",
		logx.String("kind", p.Kind),
		logx.Int("message_id", msg.ID),
		logx.Duration("took", time.Since(start)),
	)
	return nil
}

// SendPlain sends text without markup. It backs the log mirror sink.
func (c *Client) SendPlain(ctx context.Context, chatID int64, text string) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if chatID == 0 {
		chatID = c.cfg.ChatID
	}
	_, err := c.bot.Send(tele.ChatID(chatID), clip(text, textLimit), &tele.SendOptions{DisableWebPagePreview: true})
	return err
}

// inlineKeyboard puts each link on its own row, in order.
func inlineKeyboard(links []render.Link) *tele.ReplyMarkup {
	rows := make([][]tele.InlineButton, 0, len(links))
	for _, l := range links {
		if strings.TrimSpace(l.URL) == "" {
			continue
		}
		rows = append(rows, []tele.InlineButton{{Text: l.Label, URL: l.URL}})
	}
	if len(rows) == 0 {
		return nil
	}
	return &tele.ReplyMarkup{InlineKeyboard: rows}
}

const textLimit = 4000

func clip(s string, limit int) string {
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit-3]) + "..."
}

// statusTransport turns non-2xx Bot API answers into *APIError so a failed
// send is never mistaken for success, whatever the response body looks like.
type statusTransport struct {
	base http.RoundTripper
}

func (t *statusTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	resp, err := base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 == 2 {
		return resp, nil
	}
	defer resp.Body.Close()

	apiErr := &APIError{StatusCode: resp.StatusCode}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	var body struct {
		ErrorCode   int    `json:"error_code"`
		Description string `json:"description"`
	}
	if json.Unmarshal(b, &body) == nil {
		apiErr.Code = body.ErrorCode
		apiErr.Description = body.Description
	}
	return nil, apiErr
}
