package render

import (
	"fmt"
	"strings"

	"ghwatch/internal/github"
)

// Per-variant bounds for free text, in runes.
const (
	commitMessageMax = 50
	titleMax         = 80
	descriptionMax   = 100
	releaseNameMax   = 80

	// commitPreview caps the commit list of one push.
	commitPreview = 3
)

func renderPush(ev github.Event) (Payload, error) {
	var p github.PushPayload
	if err := decode(ev, &p); err != nil {
		return Payload{}, err
	}

	branch := strings.TrimPrefix(p.Ref, "refs/heads/")

	commits := make([]H, 0, commitPreview+1)
	for i, c := range p.Commits {
		if i == commitPreview {
			break
		}
		commits = append(commits, Esc("• "+Truncate(c.Message, commitMessageMax)))
	}
	total := len(p.Commits)
	if p.Size > total {
		total = p.Size
	}
	switch {
	case total == 0:
		commits = append(commits, Esc("• No commit details available"))
	case len(commits) == 0:
		commits = append(commits, Esc(fmt.Sprintf("• %d commits, no details available", total)))
	case total > len(commits):
		commits = append(commits, Esc(fmt.Sprintf("• +%d more", total-len(commits))))
	}

	text := message(
		B("🚀 Push Event"),
		section(
			field("📦", "Repository", Code(ev.Repo.Name)),
			field("🌿", "Branch", Code(branch)),
			field("🕒", "Time", Code(eventTime(ev))),
		),
		section(append([]H{B("📝 Commits:")}, commits...)...),
	)

	var details string
	if p.Head != "" && ev.RepoURL() != "" {
		details = ev.RepoURL() + "/commit/" + p.Head
	}
	return Payload{Text: text, Links: links(ev, details)}, nil
}

func renderPullRequest(ev github.Event) (Payload, error) {
	var p github.PullRequestPayload
	if err := decode(ev, &p); err != nil {
		return Payload{}, err
	}
	pr := p.PullRequest
	if pr == nil {
		return Payload{}, fmt.Errorf("%w: pull_request missing", ErrMalformed)
	}

	action := p.Action
	if action == "closed" && pr.Merged {
		action = "merged"
	}

	var desc H
	if body := Truncate(pr.Body, descriptionMax); body != "" {
		desc = field("💬", "Description", Esc(body))
	}

	title := Truncate(pr.Title, titleMax)
	if n := pr.Number; n > 0 {
		title = fmt.Sprintf("#%d %s", n, title)
	} else if p.Number > 0 {
		title = fmt.Sprintf("#%d %s", p.Number, title)
	}

	text := message(
		B("📋 Pull Request "+titleWord(action)),
		section(
			field("📦", "Repository", Code(ev.Repo.Name)),
			field("📄", "Title", Esc(title)),
			field("👤", "Author", Esc(pr.User.Login)),
			field("🕒", "Time", Code(eventTime(ev))),
			desc,
		),
	)
	return Payload{Text: text, Links: links(ev, pr.HTMLURL)}, nil
}

func renderFork(ev github.Event) (Payload, error) {
	var p github.ForkPayload
	if err := decode(ev, &p); err != nil {
		return Payload{}, err
	}
	f := p.Forkee
	if f == nil || f.FullName == "" {
		return Payload{}, fmt.Errorf("%w: forkee missing", ErrMalformed)
	}

	text := message(
		B("🍴 Repository Forked"),
		section(
			field("📦", "Original", Code(ev.Repo.Name)),
			field("🔄", "Forked to", Code(f.FullName)),
			field("👤", "By", Esc(f.Owner.Login)),
			field("🕒", "Time", Code(eventTime(ev))),
		),
	)
	return Payload{Text: text, Links: links(ev, f.HTMLURL)}, nil
}

func renderWatch(ev github.Event) (Payload, error) {
	var p github.WatchPayload
	if err := decode(ev, &p); err != nil {
		return Payload{}, err
	}

	text := message(
		B("⭐ Repository Starred"),
		section(
			field("📦", "Repository", Code(ev.Repo.Name)),
			field("👤", "By", Esc(ev.Actor.Login)),
			field("🕒", "Time", Code(eventTime(ev))),
		),
	)
	return Payload{Text: text, Links: links(ev, "")}, nil
}

func renderRelease(ev github.Event) (Payload, error) {
	var p github.ReleasePayload
	if err := decode(ev, &p); err != nil {
		return Payload{}, err
	}
	r := p.Release
	if r == nil {
		return Payload{}, fmt.Errorf("%w: release missing", ErrMalformed)
	}

	action := p.Action
	if action == "" {
		action = "published"
	}
	var name, notes, pre H
	if n := Truncate(r.Name, releaseNameMax); n != "" && n != r.TagName {
		name = field("🏷", "Name", Esc(n))
	}
	if b := Truncate(r.Body, descriptionMax); b != "" {
		notes = field("💬", "Notes", Esc(b))
	}
	if r.Prerelease {
		pre = I("pre-release")
	}

	text := message(
		B("📦 Release "+titleWord(action)),
		section(
			field("📦", "Repository", Code(ev.Repo.Name)),
			field("🔖", "Tag", Code(r.TagName)),
			name,
			field("🕒", "Time", Code(eventTime(ev))),
			pre,
			notes,
		),
	)
	return Payload{Text: text, Links: links(ev, r.HTMLURL)}, nil
}

func renderIssues(ev github.Event) (Payload, error) {
	var p github.IssuesPayload
	if err := decode(ev, &p); err != nil {
		return Payload{}, err
	}
	is := p.Issue
	if is == nil {
		return Payload{}, fmt.Errorf("%w: issue missing", ErrMalformed)
	}

	var desc H
	if body := Truncate(is.Body, descriptionMax); body != "" {
		desc = field("💬", "Description", Esc(body))
	}

	text := message(
		B("🐛 Issue "+titleWord(p.Action)),
		section(
			field("📦", "Repository", Code(ev.Repo.Name)),
			field("📄", "Title", Esc(fmt.Sprintf("#%d %s", is.Number, Truncate(is.Title, titleMax)))),
			field("👤", "Author", Esc(is.User.Login)),
			field("🕒", "Time", Code(eventTime(ev))),
			desc,
		),
	)
	return Payload{Text: text, Links: links(ev, is.HTMLURL)}, nil
}

func renderIssueComment(ev github.Event) (Payload, error) {
	var p github.IssueCommentPayload
	if err := decode(ev, &p); err != nil {
		return Payload{}, err
	}
	if p.Issue == nil || p.Comment == nil {
		return Payload{}, fmt.Errorf("%w: issue or comment missing", ErrMalformed)
	}

	var body H
	if b := Truncate(p.Comment.Body, descriptionMax); b != "" {
		body = field("💬", "Comment", Esc(b))
	}

	text := message(
		B("💬 New Comment"),
		section(
			field("📦", "Repository", Code(ev.Repo.Name)),
			field("📄", "On", Esc(fmt.Sprintf("#%d %s", p.Issue.Number, Truncate(p.Issue.Title, titleMax)))),
			field("👤", "By", Esc(p.Comment.User.Login)),
			field("🕒", "Time", Code(eventTime(ev))),
			body,
		),
	)
	return Payload{Text: text, Links: links(ev, p.Comment.HTMLURL)}, nil
}

func renderCreate(ev github.Event) (Payload, error) {
	var p github.CreatePayload
	if err := decode(ev, &p); err != nil {
		return Payload{}, err
	}
	if p.RefType == "" {
		return Payload{}, fmt.Errorf("%w: ref_type missing", ErrMalformed)
	}

	var ref, desc H
	var details string
	switch p.RefType {
	case "branch":
		ref = field("🌿", "Branch", Code(p.Ref))
		if u := ev.RepoURL(); u != "" && p.Ref != "" {
			details = u + "/tree/" + p.Ref
		}
	case "tag":
		ref = field("🔖", "Tag", Code(p.Ref))
		if u := ev.RepoURL(); u != "" && p.Ref != "" {
			details = u + "/releases/tag/" + p.Ref
		}
	}
	if d := Truncate(p.Description, descriptionMax); d != "" {
		desc = field("💬", "Description", Esc(d))
	}

	text := message(
		B("✨ "+titleWord(p.RefType)+" Created"),
		section(
			field("📦", "Repository", Code(ev.Repo.Name)),
			ref,
			field("🕒", "Time", Code(eventTime(ev))),
			desc,
		),
	)
	return Payload{Text: text, Links: links(ev, details)}, nil
}
