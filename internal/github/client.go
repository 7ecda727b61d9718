package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	logx "ghwatch/pkg/logx"
)

var (
	// ErrNotModified is returned when the feed did not change since the last
	// successful fetch (HTTP 304 on a conditional request).
	ErrNotModified = errors.New("events not modified")
	// ErrStatus is matched by every *StatusError.
	ErrStatus = errors.New("unexpected status")
)

// StatusError reports a non-2xx response from the events endpoint.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("github events: http %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("github events: http %d", e.StatusCode)
}

func (e *StatusError) Is(target error) bool { return target == ErrStatus }

// Config describes one account feed.
type Config struct {
	// BaseURL defaults to https://api.github.com.
	BaseURL string
	Account string
	// Token is an optional fixed bearer token (raises the rate limit).
	Token     string
	UserAgent string
	// PerPage is the feed window size (1..100). 0 keeps the API default (30).
	PerPage int
	// Timeout bounds one fetch. Defaults to 10s.
	Timeout   time.Duration
	Transport http.RoundTripper
}

// Client fetches the public events feed of one account.
//
// It remembers the ETag of the last successful response and sends it as
// If-None-Match, so an unchanged feed costs a 304 and no rate limit.
type Client struct {
	cfg  Config
	http *http.Client
	log  logx.Logger

	mu   sync.Mutex
	etag string
}

// NewClient validates cfg and fills defaults.
func NewClient(cfg Config, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Account) == "" {
		return nil, errors.New("github account is empty")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.github.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "ghwatch"
	}
	if cfg.PerPage < 0 || cfg.PerPage > 100 {
		return nil, fmt.Errorf("github per_page must be within 0..100, got %d", cfg.PerPage)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		log:  log,
	}, nil
}

// EventsURL is the feed endpoint for the configured account.
func (c *Client) EventsURL() string {
	u := c.cfg.BaseURL + "/users/" + url.PathEscape(c.cfg.Account) + "/events"
	if c.cfg.PerPage > 0 {
		u += "?per_page=" + strconv.Itoa(c.cfg.PerPage)
	}
	return u
}

// Fetch returns the current feed, newest first. It returns ErrNotModified when
// the server answered 304 to the conditional request.
func (c *Client) Fetch(ctx context.Context) ([]Event, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.EventsURL(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if tok := strings.TrimSpace(c.cfg.Token); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	c.mu.Lock()
	etag := c.etag
	c.mu.Unlock()
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("github events: %w", err)
	}
	defer resp.Body.Close()

	c.log.Debug("events fetched",
		logx.Int("status", resp.StatusCode),
		logx.String("ratelimit_remaining", resp.Header.Get("X-RateLimit-Remaining")),
		logx.String("poll_interval", resp.Header.Get("X-Poll-Interval")),
	)

	if resp.StatusCode == http.StatusNotModified {
		return nil, ErrNotModified
	}
	if resp.StatusCode/100 != 2 {
		return nil, statusError(resp)
	}

	var events []Event
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, fmt.Errorf("github events: decode: %w", err)
	}

	if tag := resp.Header.Get("ETag"); tag != "" {
		c.mu.Lock()
		c.etag = tag
		c.mu.Unlock()
	}
	return events, nil
}

func statusError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	var body struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(b, &body) != nil || body.Message == "" {
		body.Message = strings.TrimSpace(string(b))
		if len(body.Message) > 200 {
			body.Message = body.Message[:200]
		}
	}
	return &StatusError{StatusCode: resp.StatusCode, Message: body.Message}
}
