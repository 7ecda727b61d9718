package github

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "ghwatch/pkg/logx"
)

const eventsURL = "https://api.github.com/users/octocat/events"

const feedJSON = `[
  {"id":"3","type":"PushEvent","actor":{"id":1,"login":"octocat"},"repo":{"id":9,"name":"octocat/hello"},
   "payload":{"ref":"refs/heads/main","size":1,"commits":[{"sha":"abc","message":"fix"}]},"public":true,"created_at":"2024-05-01T10:00:00Z"},
  {"id":"2","type":"WatchEvent","actor":{"id":1,"login":"octocat"},"repo":{"id":8,"name":"other/repo"},
   "payload":{"action":"started"},"public":true,"created_at":"2024-05-01T09:00:00Z"}
]`

func newTestClient(t *testing.T, cfg Config) (*Client, *httpmock.MockTransport) {
	t.Helper()
	mt := httpmock.NewMockTransport()
	if cfg.Account == "" {
		cfg.Account = "octocat"
	}
	cfg.Transport = mt
	c, err := NewClient(cfg, logx.Nop())
	require.NoError(t, err)
	return c, mt
}

func TestFetchDecodesFeedInOrder(t *testing.T) {
	c, mt := newTestClient(t, Config{})
	mt.RegisterResponder(http.MethodGet, eventsURL, httpmock.NewStringResponder(http.StatusOK, feedJSON))

	events, err := c.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "3", events[0].ID)
	assert.Equal(t, TypePush, events[0].Type)
	assert.Equal(t, "octocat/hello", events[0].Repo.Name)
	assert.Equal(t, "https://github.com/octocat/hello", events[0].RepoURL())
	assert.Equal(t, "2", events[1].ID)

	at, ok := events[0].OccurredAt()
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), at)

	var p PushPayload
	require.NoError(t, events[0].DecodePayload(&p))
	assert.Equal(t, "refs/heads/main", p.Ref)
	require.Len(t, p.Commits, 1)
	assert.Equal(t, "fix", p.Commits[0].Message)
}

func TestFetchSendsHeaders(t *testing.T) {
	c, mt := newTestClient(t, Config{Token: "secret", UserAgent: "ghwatch-test"})
	mt.RegisterResponder(http.MethodGet, eventsURL, func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "Bearer secret", req.Header.Get("Authorization"))
		assert.Equal(t, "ghwatch-test", req.Header.Get("User-Agent"))
		assert.Equal(t, "application/vnd.github+json", req.Header.Get("Accept"))
		return httpmock.NewStringResponse(http.StatusOK, "[]"), nil
	})

	events, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Equal(t, 1, mt.GetTotalCallCount())
}

func TestFetchConditionalRequest(t *testing.T) {
	c, mt := newTestClient(t, Config{})
	mt.RegisterResponder(http.MethodGet, eventsURL, func(req *http.Request) (*http.Response, error) {
		if req.Header.Get("If-None-Match") == `"v1"` {
			return httpmock.NewStringResponse(http.StatusNotModified, ""), nil
		}
		resp := httpmock.NewStringResponse(http.StatusOK, feedJSON)
		resp.Header.Set("ETag", `"v1"`)
		return resp, nil
	})

	first, err := c.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := c.Fetch(context.Background())
	assert.Nil(t, second)
	assert.ErrorIs(t, err, ErrNotModified)
}

func TestFetchErrors(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
		check     func(t *testing.T, err error)
	}{
		{
			name:      "non-2xx with api message",
			responder: httpmock.NewStringResponder(http.StatusForbidden, `{"message":"API rate limit exceeded"}`),
			check: func(t *testing.T, err error) {
				var se *StatusError
				require.True(t, errors.As(err, &se))
				assert.Equal(t, http.StatusForbidden, se.StatusCode)
				assert.Equal(t, "API rate limit exceeded", se.Message)
				assert.ErrorIs(t, err, ErrStatus)
			},
		},
		{
			name:      "server error with plain body",
			responder: httpmock.NewStringResponder(http.StatusBadGateway, "bad gateway"),
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrStatus)
				assert.Contains(t, err.Error(), "502")
			},
		},
		{
			name:      "malformed body",
			responder: httpmock.NewStringResponder(http.StatusOK, `{"not":"a list"}`),
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "decode")
			},
		},
		{
			name:      "transport failure",
			responder: httpmock.NewErrorResponder(errors.New("connection reset")),
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "connection reset")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, mt := newTestClient(t, Config{})
			mt.RegisterResponder(http.MethodGet, eventsURL, tt.responder)

			events, err := c.Fetch(context.Background())
			require.Error(t, err)
			assert.Nil(t, events)
			tt.check(t, err)
		})
	}
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{}, logx.Nop())
	assert.Error(t, err)

	_, err = NewClient(Config{Account: "octocat", PerPage: 101}, logx.Nop())
	assert.Error(t, err)

	c, err := NewClient(Config{Account: "octo cat", PerPage: 50, BaseURL: "https://ghe.example.com/api/v3/"}, logx.Nop())
	require.NoError(t, err)
	assert.Equal(t, "https://ghe.example.com/api/v3/users/octo%20cat/events?per_page=50", c.EventsURL())
}

func TestOccurredAtInvalid(t *testing.T) {
	_, ok := Event{CreatedAt: "yesterday"}.OccurredAt()
	assert.False(t, ok)
	_, ok = Event{}.OccurredAt()
	assert.False(t, ok)
}
