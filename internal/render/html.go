package render

import (
	"html"
	"strings"
	"unicode/utf8"
)

// H is HTML that is safe to send with Telegram's HTML parse mode.
// Values of type H are already escaped.
type H string

func (h H) String() string { return string(h) }

// Esc escapes text for Telegram HTML parse mode.
func Esc(s string) H { return H(html.EscapeString(s)) }

func wrap(tag string, inner H) H { return H("<" + tag + ">" + inner.String() + "</" + tag + ">") }

func B(s string) H    { return wrap("b", Esc(s)) }
func I(s string) H    { return wrap("i", Esc(s)) }
func Code(s string) H { return wrap("code", Esc(s)) }

// field renders "<emoji> <b>label:</b> value".
func field(emoji, label string, value H) H {
	return H(emoji + " " + B(label+":").String() + " " + value.String())
}

// section joins the non-empty parts with newlines.
func section(parts ...H) H {
	ss := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p.String()) != "" {
			ss = append(ss, p.String())
		}
	}
	return H(strings.Join(ss, "\n"))
}

// message joins the non-empty sections with a blank line between them.
func message(sections ...H) string {
	ss := make([]string, 0, len(sections))
	for _, s := range sections {
		if strings.TrimSpace(s.String()) != "" {
			ss = append(ss, s.String())
		}
	}
	return strings.Join(ss, "\n\n")
}

const ellipsis = "..."

// FirstLine returns s up to the first line break, trimmed.
func FirstLine(s string) string {
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

// Truncate reduces s to its first line and cuts it to at most n runes,
// appending "..." when anything was removed.
func Truncate(s string, n int) string {
	s = FirstLine(s)
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i] + ellipsis
		}
		count++
	}
	return s
}
