package github

import (
	"encoding/json"
	"strings"
	"time"
)

// Event is one entry of the public events feed. The feed is newest-first and
// list position is the only chronology signal: IDs are opaque and are only
// ever compared for equality.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Actor     User            `json:"actor"`
	Repo      EventRepo       `json:"repo"`
	Payload   json.RawMessage `json:"payload"`
	Public    bool            `json:"public"`
	CreatedAt string          `json:"created_at"`
}

// OccurredAt parses CreatedAt. ok is false when the timestamp is missing or
// not RFC 3339.
func (e Event) OccurredAt() (t time.Time, ok bool) {
	s := strings.TrimSpace(e.CreatedAt)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// RepoURL is the browser URL of the repository the event happened in.
func (e Event) RepoURL() string {
	if e.Repo.Name == "" {
		return ""
	}
	return "https://github.com/" + e.Repo.Name
}

// DecodePayload unmarshals the raw payload into dst.
func (e Event) DecodePayload(dst any) error {
	if len(e.Payload) == 0 {
		return json.Unmarshal([]byte("{}"), dst)
	}
	return json.Unmarshal(e.Payload, dst)
}

type EventRepo struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

type User struct {
	ID      int64  `json:"id"`
	Login   string `json:"login"`
	HTMLURL string `json:"html_url,omitempty"`
}

// Event type tags understood by the renderer.
const (
	TypePush         = "PushEvent"
	TypePullRequest  = "PullRequestEvent"
	TypeFork         = "ForkEvent"
	TypeWatch        = "WatchEvent"
	TypeRelease      = "ReleaseEvent"
	TypeIssues       = "IssuesEvent"
	TypeIssueComment = "IssueCommentEvent"
	TypeCreate       = "CreateEvent"
)

type PushPayload struct {
	Ref          string   `json:"ref"`
	Head         string   `json:"head"`
	Before       string   `json:"before"`
	Size         int      `json:"size"`
	DistinctSize int      `json:"distinct_size"`
	Commits      []Commit `json:"commits"`
}

type Commit struct {
	SHA      string       `json:"sha"`
	Message  string       `json:"message"`
	Author   CommitAuthor `json:"author"`
	Distinct bool         `json:"distinct"`
	URL      string       `json:"url"`
}

type CommitAuthor struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type PullRequestPayload struct {
	Action      string       `json:"action"`
	Number      int          `json:"number"`
	PullRequest *PullRequest `json:"pull_request"`
}

type PullRequest struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	HTMLURL string `json:"html_url"`
	State   string `json:"state"`
	Merged  bool   `json:"merged"`
	User    User   `json:"user"`
}

type ForkPayload struct {
	Forkee *Repository `json:"forkee"`
}

type Repository struct {
	FullName string `json:"full_name"`
	HTMLURL  string `json:"html_url"`
	Owner    User   `json:"owner"`
}

type WatchPayload struct {
	Action string `json:"action"`
}

type ReleasePayload struct {
	Action  string   `json:"action"`
	Release *Release `json:"release"`
}

type Release struct {
	TagName    string `json:"tag_name"`
	Name       string `json:"name"`
	Body       string `json:"body"`
	HTMLURL    string `json:"html_url"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`
}

type IssuesPayload struct {
	Action string `json:"action"`
	Issue  *Issue `json:"issue"`
}

type Issue struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	HTMLURL string `json:"html_url"`
	User    User   `json:"user"`
}

type IssueCommentPayload struct {
	Action  string   `json:"action"`
	Issue   *Issue   `json:"issue"`
	Comment *Comment `json:"comment"`
}

type Comment struct {
	Body    string `json:"body"`
	HTMLURL string `json:"html_url"`
	User    User   `json:"user"`
}

type CreatePayload struct {
	Ref          string `json:"ref"`
	RefType      string `json:"ref_type"`
	MasterBranch string `json:"master_branch"`
	Description  string `json:"description"`
}
