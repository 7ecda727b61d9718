package render

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghwatch/internal/github"
)

func event(t *testing.T, typ string, payload any) github.Event {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return github.Event{
		ID:        "100",
		Type:      typ,
		Actor:     github.User{Login: "octocat"},
		Repo:      github.EventRepo{Name: "octocat/hello"},
		Payload:   raw,
		CreatedAt: "2024-05-01T10:00:00Z",
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{name: "short", in: "fix bug", n: 50, want: "fix bug"},
		{name: "exact", in: strings.Repeat("a", 50), n: 50, want: strings.Repeat("a", 50)},
		{name: "long", in: strings.Repeat("a", 80), n: 50, want: strings.Repeat("a", 50) + "..."},
		{name: "first line only", in: "subject\n\nbody text", n: 50, want: "subject"},
		{name: "first line then cut", in: strings.Repeat("b", 60) + "\nmore", n: 50, want: strings.Repeat("b", 50) + "..."},
		{name: "crlf", in: "subject\r\nbody", n: 50, want: "subject"},
		{name: "runes", in: strings.Repeat("é", 10), n: 4, want: "éééé..."},
		{name: "empty", in: "", n: 10, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Truncate(tt.in, tt.n))
		})
	}
}

func TestRenderPushPreviewAndTruncation(t *testing.T) {
	long := strings.Repeat("x", 80)
	ev := event(t, github.TypePush, map[string]any{
		"ref":  "refs/heads/main",
		"head": "abc123",
		"commits": []map[string]any{
			{"sha": "1", "message": long},
			{"sha": "2", "message": "second <commit>\n\nwith body"},
			{"sha": "3", "message": "third"},
			{"sha": "4", "message": "fourth"},
		},
	})

	p, ok, err := NewRegistry().Render(ev)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, github.TypePush, p.Kind)
	assert.Contains(t, p.Text, "Push Event")
	assert.Contains(t, p.Text, "<code>main</code>")
	assert.Contains(t, p.Text, "<code>2024-05-01 10:00:00 UTC</code>")
	assert.Contains(t, p.Text, "• "+strings.Repeat("x", 50)+"...")
	assert.NotContains(t, p.Text, strings.Repeat("x", 51))
	assert.Contains(t, p.Text, "• second &lt;commit&gt;")
	assert.NotContains(t, p.Text, "with body")
	assert.Contains(t, p.Text, "• third")
	assert.NotContains(t, p.Text, "fourth")
	assert.Contains(t, p.Text, "• +1 more")

	require.Len(t, p.Links, 2)
	assert.Equal(t, Link{Label: "🔗 Repository", URL: "https://github.com/octocat/hello"}, p.Links[0])
	assert.Equal(t, "https://github.com/octocat/hello/commit/abc123", p.Links[1].URL)
}

func TestRenderPushWithoutCommits(t *testing.T) {
	p, ok, err := NewRegistry().Render(event(t, github.TypePush, map[string]any{"ref": "refs/heads/dev"}))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, p.Text, "No commit details available")
	assert.Len(t, p.Links, 1)

	p, _, err = NewRegistry().Render(event(t, github.TypePush, map[string]any{"ref": "refs/heads/dev", "size": 2}))
	require.NoError(t, err)
	assert.Contains(t, p.Text, "2 commits, no details available")
}

func TestRenderPullRequest(t *testing.T) {
	tests := []struct {
		name      string
		action    string
		merged    bool
		body      string
		wantTitle string
		wantDesc  bool
	}{
		{name: "opened", action: "opened", body: "Adds a thing", wantTitle: "Pull Request Opened", wantDesc: true},
		{name: "closed", action: "closed", wantTitle: "Pull Request Closed"},
		{name: "merged", action: "closed", merged: true, wantTitle: "Pull Request Merged"},
		{name: "reopened", action: "reopened", wantTitle: "Pull Request Reopened"},
		{name: "edited", action: "edited", body: strings.Repeat("d", 150), wantTitle: "Pull Request Edited", wantDesc: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := event(t, github.TypePullRequest, map[string]any{
				"action": tt.action,
				"number": 7,
				"pull_request": map[string]any{
					"number":   7,
					"title":    "Improve <parser>",
					"body":     tt.body,
					"html_url": "https://github.com/octocat/hello/pull/7",
					"merged":   tt.merged,
					"user":     map[string]any{"login": "hubot"},
				},
			})
			p, ok, err := NewRegistry().Render(ev)
			require.NoError(t, err)
			require.True(t, ok)

			assert.Contains(t, p.Text, tt.wantTitle)
			assert.Contains(t, p.Text, "#7 Improve &lt;parser&gt;")
			assert.Contains(t, p.Text, "hubot")
			if tt.wantDesc {
				assert.Contains(t, p.Text, "Description:")
			} else {
				assert.NotContains(t, p.Text, "Description:")
			}
			if len(tt.body) > descriptionMax {
				assert.Contains(t, p.Text, strings.Repeat("d", descriptionMax)+"...")
			}
			require.Len(t, p.Links, 2)
			assert.Equal(t, "https://github.com/octocat/hello/pull/7", p.Links[1].URL)
		})
	}
}

func TestRenderMalformed(t *testing.T) {
	tests := []struct {
		name string
		ev   github.Event
	}{
		{name: "pull request missing", ev: event(t, github.TypePullRequest, map[string]any{"action": "opened"})},
		{name: "forkee missing", ev: event(t, github.TypeFork, map[string]any{})},
		{name: "release missing", ev: event(t, github.TypeRelease, map[string]any{"action": "published"})},
		{name: "issue missing", ev: event(t, github.TypeIssues, map[string]any{"action": "opened"})},
		{name: "comment missing", ev: event(t, github.TypeIssueComment, map[string]any{"issue": map[string]any{"number": 1}})},
		{name: "create without ref type", ev: event(t, github.TypeCreate, map[string]any{"ref": "x"})},
		{name: "payload not an object", ev: github.Event{ID: "1", Type: github.TypePush, Payload: json.RawMessage(`"nope"`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok, err := NewRegistry().Render(tt.ev)
			assert.True(t, ok)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestRenderUnknownTypeIsSkipped(t *testing.T) {
	p, ok, err := NewRegistry().Render(event(t, "GollumEvent", map[string]any{"pages": []any{}}))
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, p.Text)
}

func TestRenderFork(t *testing.T) {
	p, ok, err := NewRegistry().Render(event(t, github.TypeFork, map[string]any{
		"forkee": map[string]any{
			"full_name": "hubot/hello",
			"html_url":  "https://github.com/hubot/hello",
			"owner":     map[string]any{"login": "hubot"},
		},
	}))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, p.Text, "Repository Forked")
	assert.Contains(t, p.Text, "<code>hubot/hello</code>")
	assert.Equal(t, "https://github.com/hubot/hello", p.Links[1].URL)
}

func TestRenderWatchAndRelease(t *testing.T) {
	r := NewRegistry()

	p, ok, err := r.Render(event(t, github.TypeWatch, map[string]any{"action": "started"}))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, p.Text, "Repository Starred")
	assert.Contains(t, p.Text, "octocat")
	assert.Len(t, p.Links, 1)

	p, ok, err = r.Render(event(t, github.TypeRelease, map[string]any{
		"action": "published",
		"release": map[string]any{
			"tag_name":   "v1.2.0",
			"name":       "Spring release",
			"body":       "Highlights\n- faster",
			"html_url":   "https://github.com/octocat/hello/releases/tag/v1.2.0",
			"prerelease": true,
		},
	}))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, p.Text, "Release Published")
	assert.Contains(t, p.Text, "<code>v1.2.0</code>")
	assert.Contains(t, p.Text, "Spring release")
	assert.Contains(t, p.Text, "<i>pre-release</i>")
	assert.Contains(t, p.Text, "Notes:</b> Highlights")
	assert.NotContains(t, p.Text, "faster")
	assert.Equal(t, "https://github.com/octocat/hello/releases/tag/v1.2.0", p.Links[1].URL)
}

func TestRenderIssueAndCreate(t *testing.T) {
	r := NewRegistry()

	p, _, err := r.Render(event(t, github.TypeIssues, map[string]any{
		"action": "opened",
		"issue":  map[string]any{"number": 3, "title": "Crash on start", "html_url": "https://github.com/octocat/hello/issues/3", "user": map[string]any{"login": "hubot"}},
	}))
	require.NoError(t, err)
	assert.Contains(t, p.Text, "Issue Opened")
	assert.Contains(t, p.Text, "#3 Crash on start")
	assert.NotContains(t, p.Text, "Description:")

	p, _, err = r.Render(event(t, github.TypeCreate, map[string]any{"ref": "feature/x", "ref_type": "branch"}))
	require.NoError(t, err)
	assert.Contains(t, p.Text, "Branch Created")
	assert.Equal(t, "https://github.com/octocat/hello/tree/feature/x", p.Links[1].URL)

	p, _, err = r.Render(event(t, github.TypeCreate, map[string]any{"ref_type": "repository", "description": "A new home"}))
	require.NoError(t, err)
	assert.Contains(t, p.Text, "Repository Created")
	assert.Contains(t, p.Text, "A new home")
	assert.Len(t, p.Links, 1)
}

func TestRenderUnparsableTimeIsVerbatim(t *testing.T) {
	ev := event(t, github.TypeWatch, map[string]any{"action": "started"})
	ev.CreatedAt = "sometime"
	p, _, err := NewRegistry().Render(ev)
	require.NoError(t, err)
	assert.Contains(t, p.Text, "<code>sometime</code>")
}

func TestArmed(t *testing.T) {
	p := Armed("octocat", time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), 30)
	assert.Equal(t, "armed", p.Kind)
	assert.Contains(t, p.Text, "<code>octocat</code>")
	assert.Contains(t, p.Text, "2024-05-01 12:00:00 UTC")
	assert.Contains(t, p.Text, "30 earlier events")
	require.Len(t, p.Links, 1)
	assert.Equal(t, "https://github.com/octocat", p.Links[0].URL)
}

func TestRegistryRegisterAndTypes(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{
		github.TypeCreate, github.TypeFork, github.TypeIssueComment, github.TypeIssues,
		github.TypePullRequest, github.TypePush, github.TypeRelease, github.TypeWatch,
	}, r.Types())

	r.Register("GollumEvent", func(ev github.Event) (Payload, error) {
		return Payload{Text: "wiki"}, nil
	})
	p, ok, err := r.Render(github.Event{Type: "GollumEvent"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "GollumEvent", p.Kind)

	r.Register(github.TypeWatch, nil)
	_, ok, _ = r.Render(github.Event{Type: github.TypeWatch})
	assert.False(t, ok)
}
