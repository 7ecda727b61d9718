package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghwatch/internal/render"
	logx "ghwatch/pkg/logx"
)

const sendURL = "https://api.telegram.org/bot123:abc/sendMessage"

const okBody = `{"ok":true,"result":{"message_id":42,"date":1714557600,"chat":{"id":-100,"type":"group"},"text":"hi"}}`

func newTestClient(t *testing.T) (*Client, *httpmock.MockTransport) {
	t.Helper()
	mt := httpmock.NewMockTransport()
	c, err := New(Config{Token: "123:abc", ChatID: -100, DisablePreview: true, Transport: mt}, logx.Nop())
	require.NoError(t, err)
	return c, mt
}

func readParams(t *testing.T, req *http.Request) map[string]string {
	t.Helper()
	b, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(b, &raw))
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[k] = fmt.Sprint(v)
	}
	return out
}

func TestSendPostsHTMLWithButtons(t *testing.T) {
	c, mt := newTestClient(t)
	var params map[string]string
	mt.RegisterResponder(http.MethodPost, sendURL, func(req *http.Request) (*http.Response, error) {
		params = readParams(t, req)
		return httpmock.NewStringResponse(http.StatusOK, okBody), nil
	})

	err := c.Send(context.Background(), render.Payload{
		Kind: "PushEvent",
		Text: "<b>Push Event</b>",
		Links: []render.Link{
			{Label: "Repository", URL: "https://github.com/octocat/hello"},
			{Label: "Skipped", URL: ""},
			{Label: "View Details", URL: "https://github.com/octocat/hello/pull/1"},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, params)

	assert.Equal(t, "-100", params["chat_id"])
	assert.Equal(t, "<b>Push Event</b>", params["text"])
	assert.Equal(t, "HTML", params["parse_mode"])
	assert.Equal(t, "true", params["disable_web_page_preview"])

	markup := params["reply_markup"]
	assert.Contains(t, markup, "https://github.com/octocat/hello")
	assert.Contains(t, markup, "https://github.com/octocat/hello/pull/1")
	assert.NotContains(t, markup, "Skipped")
	assert.Less(t, strings.Index(markup, "Repository"), strings.Index(markup, "View Details"))
}

func TestSendFailures(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
		check     func(t *testing.T, err error)
	}{
		{
			name:      "api error",
			responder: httpmock.NewStringResponder(http.StatusBadRequest, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`),
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "chat not found")
			},
		},
		{
			name:      "server error without json",
			responder: httpmock.NewStringResponder(http.StatusBadGateway, "<html>bad gateway</html>"),
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "502")
			},
		},
		{
			name:      "rate limited",
			responder: httpmock.NewStringResponder(http.StatusTooManyRequests, `{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 3"}`),
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "429")
			},
		},
		{
			name:      "transport failure",
			responder: httpmock.NewErrorResponder(errors.New("dial tcp: no route to host")),
			check: func(t *testing.T, err error) {
				assert.Contains(t, err.Error(), "no route to host")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, mt := newTestClient(t)
			mt.RegisterResponder(http.MethodPost, sendURL, tt.responder)

			err := c.Send(context.Background(), render.Payload{Kind: "WatchEvent", Text: "star"})
			require.Error(t, err)
			tt.check(t, err)
			assert.Equal(t, 1, mt.GetTotalCallCount(), "no retries")
		})
	}
}

func TestSendHonorsCanceledContext(t *testing.T) {
	c, mt := newTestClient(t)
	mt.RegisterResponder(http.MethodPost, sendURL, httpmock.NewStringResponder(http.StatusOK, okBody))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Send(ctx, render.Payload{Text: "x"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, mt.GetTotalCallCount())
}

func TestSendPlainDefaultsToConfiguredChat(t *testing.T) {
	c, mt := newTestClient(t)
	var params map[string]string
	mt.RegisterResponder(http.MethodPost, sendURL, func(req *http.Request) (*http.Response, error) {
		params = readParams(t, req)
		return httpmock.NewStringResponse(http.StatusOK, okBody), nil
	})

	require.NoError(t, c.SendPlain(context.Background(), 0, "[WARN] fetch failed"))
	assert.Equal(t, "-100", params["chat_id"])
	assert.Equal(t, "[WARN] fetch failed", params["text"])
	_, hasMode := params["parse_mode"]
	assert.False(t, hasMode)
}

func TestStatusTransportAPIError(t *testing.T) {
	mt := httpmock.NewMockTransport()
	mt.RegisterResponder(http.MethodPost, "https://example.test/x",
		httpmock.NewStringResponder(http.StatusForbidden, `{"ok":false,"error_code":403,"description":"Forbidden: bot was kicked"}`))

	client := &http.Client{Transport: &statusTransport{base: mt}}
	resp, err := client.Post("https://example.test/x", "application/json", strings.NewReader("{}"))
	if resp != nil {
		resp.Body.Close()
	}
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, 403, apiErr.Code)
	assert.Equal(t, "Forbidden: bot was kicked", apiErr.Description)
	assert.ErrorIs(t, err, ErrNotOK)
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{ChatID: 1}, logx.Nop())
	assert.Error(t, err)
	_, err = New(Config{Token: "t"}, logx.Nop())
	assert.Error(t, err)
}

func TestClip(t *testing.T) {
	assert.Equal(t, "abc", clip("abc", 10))
	assert.Equal(t, "abcdefg...", clip("abcdefghijklmnop", 10))
}
