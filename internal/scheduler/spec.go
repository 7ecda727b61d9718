package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// SpecKind is the normalized kind of a schedule string.
type SpecKind int

const (
	SpecInterval SpecKind = iota
	SpecCron
)

func (k SpecKind) String() string {
	if k == SpecCron {
		return "cron"
	}
	return "interval"
}

// Spec is a parsed poll schedule.
//
// Accepted forms:
//   - Go duration: "2m", "1h30m"
//   - HH:MM interval: "00:02" (2 minutes), "01:30"
//   - cron expression: "*/2 * * * *", "@hourly", "@every 90s"
//
// "cron:" forces cron parsing; "interval:" or "every:" force interval parsing.
type Spec struct {
	Kind   SpecKind
	Cron   string
	Every  time.Duration
	Source string // "duration" | "hhmm" | "cron"
}

func (s Spec) String() string {
	if s.Kind == SpecCron {
		return s.Cron
	}
	return s.Every.String()
}

var reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule parses raw into an interval or a validated cron expression.
func ParseSchedule(raw string) (Spec, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Spec{}, fmt.Errorf("schedule required")
	}

	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		return parseCron(strings.TrimSpace(s[len("cron:"):]))
	case strings.HasPrefix(low, "interval:"):
		return parseInterval(s[len("interval:"):])
	case strings.HasPrefix(low, "every:"):
		return parseInterval(s[len("every:"):])
	case strings.ContainsAny(s, " \t") || strings.HasPrefix(s, "@"):
		return parseCron(s)
	}

	spec, err := parseInterval(s)
	if err != nil {
		return Spec{}, fmt.Errorf(
			"invalid schedule %q (use a duration like '2m', HH:MM like '00:02', or cron like '*/2 * * * *')", raw)
	}
	return spec, nil
}

func parseCron(expr string) (Spec, error) {
	if expr == "" {
		return Spec{}, fmt.Errorf("cron expression required")
	}
	if _, err := cronParser.Parse(expr); err != nil {
		return Spec{}, fmt.Errorf("invalid cron %q: %w", expr, err)
	}
	return Spec{Kind: SpecCron, Cron: expr, Source: "cron"}, nil
}

func parseInterval(v string) (Spec, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return Spec{}, fmt.Errorf("interval required")
	}
	src := "duration"
	var d time.Duration
	if m := reHHMM.FindStringSubmatch(v); m != nil {
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if mm > 59 {
			return Spec{}, fmt.Errorf("invalid minutes in %q", v)
		}
		d = time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
		src = "hhmm"
	} else {
		var err error
		if d, err = time.ParseDuration(v); err != nil {
			return Spec{}, fmt.Errorf("invalid interval %q", v)
		}
	}
	if d <= 0 {
		return Spec{}, fmt.Errorf("interval must be > 0")
	}
	return Spec{Kind: SpecInterval, Every: d, Source: src}, nil
}

func (s Spec) schedule() (cron.Schedule, error) {
	if s.Kind == SpecCron {
		return cronParser.Parse(s.Cron)
	}
	return cron.Every(s.Every), nil
}
