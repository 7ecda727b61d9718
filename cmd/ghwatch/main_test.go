package main

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghwatch/internal/config"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--env-file", filepath.Join(t.TempDir(), "none.env")))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func setEnv(t *testing.T) {
	t.Setenv(config.EnvAccount, "octocat")
	t.Setenv(config.EnvTelegramToken, "123:abc")
	t.Setenv(config.EnvChatID, "-100")
	t.Setenv(config.EnvGitHubToken, "")
}

func TestValidatePrintsSummary(t *testing.T) {
	setEnv(t)
	path := filepath.Join(t.TempDir(), "ghwatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("poll:\n  schedule: \"every:5m\"\n  max_per_cycle: 3\n"), 0o600))

	out, err := execute(t, "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "octocat")
	assert.Contains(t, out, "-100")
	assert.Contains(t, out, "not set")
	assert.Contains(t, out, "config ok")
}

func TestValidateReportsMissingKeys(t *testing.T) {
	setEnv(t)
	t.Setenv(config.EnvTelegramToken, "")

	_, err := execute(t, "validate")
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrMissing)
}

func TestPreviewRendersWithoutSending(t *testing.T) {
	setEnv(t)
	t.Setenv(config.EnvTelegramToken, "")

	httpmock.Activate()
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodGet, "https://api.github.com/users/octocat/events",
		httpmock.NewStringResponder(http.StatusOK, `[
			{"id":"3","type":"GollumEvent","actor":{"login":"octocat"},"repo":{"name":"octocat/a"},"payload":{},"created_at":"2024-05-01T10:00:00Z"},
			{"id":"2","type":"WatchEvent","actor":{"login":"octocat"},"repo":{"name":"octocat/b"},"payload":{"action":"started"},"created_at":"2024-05-01T09:00:00Z"},
			{"id":"1","type":"WatchEvent","actor":{"login":"octocat"},"repo":{"name":"octocat/c"},"payload":{"action":"started"},"created_at":"2024-05-01T08:00:00Z"}
		]`))

	out, err := execute(t, "preview", "-n", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "octocat/b")
	assert.NotContains(t, out, "octocat/c")
	assert.Contains(t, out, "# 3 GollumEvent: skipped")
	assert.Contains(t, out, "1 of 2 events rendered")
	assert.NotContains(t, out, "<b>")
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestPreviewRejectsBadLimit(t *testing.T) {
	_, err := execute(t, "preview", "-n", "0")
	require.Error(t, err)
}
