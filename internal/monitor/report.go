package monitor

import (
	"time"

	"ghwatch/internal/feed"
)

// Report summarizes one cycle.
type Report struct {
	ID      string
	Started time.Time
	Took    time.Duration

	// Armed is set on the cycle that first observed the feed.
	Armed       bool
	NotModified bool

	Fetched    int
	New        int
	Dropped    int
	Sent       int
	Failed     int
	Skipped    int
	Duplicates int

	// Err is a fetch failure, an interruption or a recovered panic.
	Err    error
	Cursor feed.Cursor
}

type Outcome string

const (
	OutcomeSent         Outcome = "sent"
	OutcomeSendFailed   Outcome = "send_failed"
	OutcomeRenderFailed Outcome = "render_failed"
	OutcomeSkipped      Outcome = "skipped"
	OutcomeDuplicate    Outcome = "duplicate"
)

// Delivery is one dispatch attempt, kept in the recent history.
type Delivery struct {
	Cycle   string    `json:"cycle"`
	EventID string    `json:"event_id"`
	Type    string    `json:"type"`
	Repo    string    `json:"repo"`
	Outcome Outcome   `json:"outcome"`
	Err     string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}
