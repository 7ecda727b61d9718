// Package render turns feed events into Telegram notifications.
//
// Every recognised event type has exactly one render function, looked up by
// type tag. Unknown tags are skipped, not errors. Render functions are pure:
// the same event always yields the same payload.
package render

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"ghwatch/internal/github"
)

// ErrMalformed is returned when an event of a known type lacks a required
// part of its payload.
var ErrMalformed = errors.New("malformed event payload")

// ParseMode is the Telegram parse mode every Payload.Text is written for.
const ParseMode = "HTML"

// Link is one inline button.
type Link struct {
	Label string
	URL   string
}

// Payload is a rendered notification.
type Payload struct {
	// Kind is the event type tag (or "armed"); used for logs and metrics.
	Kind  string
	Text  string
	Links []Link
}

// Func renders one event of a known type.
type Func func(ev github.Event) (Payload, error)

// Registry dispatches events to render functions by type tag.
type Registry struct {
	byType map[string]Func
}

// NewRegistry returns a registry with every built-in renderer.
func NewRegistry() *Registry {
	r := &Registry{byType: map[string]Func{}}
	r.Register(github.TypePush, renderPush)
	r.Register(github.TypePullRequest, renderPullRequest)
	r.Register(github.TypeFork, renderFork)
	r.Register(github.TypeWatch, renderWatch)
	r.Register(github.TypeRelease, renderRelease)
	r.Register(github.TypeIssues, renderIssues)
	r.Register(github.TypeIssueComment, renderIssueComment)
	r.Register(github.TypeCreate, renderCreate)
	return r
}

// Register installs or replaces the renderer for tag.
func (r *Registry) Register(tag string, fn Func) {
	if fn == nil {
		delete(r.byType, tag)
		return
	}
	r.byType[tag] = fn
}

// Types lists the recognised tags, sorted.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.byType))
	for k := range r.byType {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Render renders ev. ok is false for unrecognised types; err is non-nil when
// the event is recognised but cannot be rendered.
func (r *Registry) Render(ev github.Event) (p Payload, ok bool, err error) {
	fn, found := r.byType[ev.Type]
	if !found {
		return Payload{}, false, nil
	}
	p, err = fn(ev)
	if err != nil {
		return Payload{}, true, fmt.Errorf("render %s %s: %w", ev.Type, ev.ID, err)
	}
	if p.Kind == "" {
		p.Kind = ev.Type
	}
	return p, true, nil
}

// Armed renders the one-time notification sent when the watcher first sees
// the feed and arms its cursor.
func Armed(account string, startedAt time.Time, skipped int) Payload {
	text := message(
		B("🤖 GitHub Monitor Started!"),
		section(
			field("👤", "Monitoring", Code(account)),
			field("⏰", "Started", Code(startedAt.UTC().Format(timeLayout))),
			field("⏭", "Skipped", Esc(fmt.Sprintf("%d earlier events", skipped))),
		),
		Esc("🔔 You'll get notified for new activities!"),
	)
	return Payload{
		Kind:  "armed",
		Text:  text,
		Links: []Link{{Label: "👤 Profile", URL: "https://github.com/" + account}},
	}
}

const timeLayout = "2006-01-02 15:04:05 UTC"

// eventTime formats the event timestamp, or returns it verbatim when it does
// not parse.
func eventTime(ev github.Event) string {
	if t, ok := ev.OccurredAt(); ok {
		return t.UTC().Format(timeLayout)
	}
	return ev.CreatedAt
}

// links always starts with the repository button; details is added when set.
func links(ev github.Event, details string) []Link {
	out := make([]Link, 0, 2)
	if u := ev.RepoURL(); u != "" {
		out = append(out, Link{Label: "🔗 Repository", URL: u})
	}
	if details != "" {
		out = append(out, Link{Label: "📄 View Details", URL: details})
	}
	return out
}

// titleWord upper-cases the first letter of an ASCII action word.
func titleWord(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func decode(ev github.Event, dst any) error {
	if err := ev.DecodePayload(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
