// Package feed holds the pure parts of a polling cycle: the cursor, the delta
// extractor and the throttle policy.
//
// Ordering is positional. The events feed is newest-first and event IDs are
// opaque, so IDs are only compared for equality and list position is the only
// chronology signal. Never sort on timestamps here; they tie and are coarse.
package feed

import "ghwatch/internal/github"

// DefaultMaxPerCycle caps how many events one cycle dispatches when no
// explicit limit is configured.
const DefaultMaxPerCycle = 5

// Cursor is the watermark between already-notified and not-yet-notified
// events. The zero value is unset ("unarmed").
type Cursor struct {
	LastSeenID string
	Set        bool
}

// At returns a cursor armed at id.
func At(id string) Cursor { return Cursor{LastSeenID: id, Set: true} }

// Advance returns the cursor after a cycle that fetched events: it moves to the
// newest fetched id. An empty fetch leaves the cursor as is.
func (c Cursor) Advance(events []github.Event) Cursor {
	if len(events) == 0 {
		return c
	}
	return At(events[0].ID)
}

// ExtractDelta returns the events newer than cur, newest first.
//
// An unset cursor yields (nil, true): on first observation history is never
// replayed. Otherwise events are collected from the front until the one whose
// ID equals cur.LastSeenID (excluded along with everything after it). If that
// ID is not in the list, the whole list is new.
func ExtractDelta(events []github.Event, cur Cursor) (delta []github.Event, firstRun bool) {
	if !cur.Set {
		return nil, true
	}
	for i, ev := range events {
		if ev.ID == cur.LastSeenID {
			return events[:i:i], false
		}
	}
	return events[:len(events):len(events)], false
}

// Throttle keeps the max newest events of a newest-first delta and returns
// them oldest-first for chronological dispatch. dropped is how many older
// events were discarded; they are never carried over to a later cycle.
func Throttle(delta []github.Event, max int) (batch []github.Event, dropped int) {
	if max <= 0 {
		max = DefaultMaxPerCycle
	}
	keep := delta
	if len(keep) > max {
		dropped = len(keep) - max
		keep = keep[:max]
	}
	batch = make([]github.Event, len(keep))
	for i, ev := range keep {
		batch[len(keep)-1-i] = ev
	}
	return batch, dropped
}
