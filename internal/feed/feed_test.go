package feed

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ghwatch/internal/github"
)

func mkEvents(ids ...string) []github.Event {
	out := make([]github.Event, 0, len(ids))
	for _, id := range ids {
		out = append(out, github.Event{ID: id, Type: github.TypePush})
	}
	return out
}

func ids(events []github.Event) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, e.ID)
	}
	return out
}

func TestExtractDelta(t *testing.T) {
	t.Parallel()
	list := mkEvents("e0", "e1", "e2", "e3")

	tests := []struct {
		name      string
		events    []github.Event
		cur       Cursor
		want      []string
		wantFirst bool
	}{
		{name: "unarmed", events: list, cur: Cursor{}, want: []string{}, wantFirst: true},
		{name: "cursor at e2", events: list, cur: At("e2"), want: []string{"e0", "e1"}},
		{name: "cursor at e3", events: list, cur: At("e3"), want: []string{"e0", "e1", "e2"}},
		{name: "cursor at head", events: list, cur: At("e0"), want: []string{}},
		{name: "cursor absent", events: list, cur: At("gone"), want: []string{"e0", "e1", "e2", "e3"}},
		{name: "empty fetch", events: nil, cur: At("e0"), want: []string{}},
		{name: "numeric ids are not ordered", events: mkEvents("5", "90", "7"), cur: At("90"), want: []string{"5"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, first := ExtractDelta(tt.events, tt.cur)
			assert.Equal(t, tt.wantFirst, first)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestExtractDeltaDoesNotAliasAppend(t *testing.T) {
	t.Parallel()
	list := mkEvents("e0", "e1", "e2")
	delta, _ := ExtractDelta(list, At("e1"))
	_ = append(delta, github.Event{ID: "x"})
	assert.Equal(t, "e1", list[1].ID, "append through delta overwrote fetched list")
}

func TestThrottle(t *testing.T) {
	t.Parallel()
	// newest-first delta d0..d6
	delta := make([]github.Event, 0, 7)
	for i := 0; i < 7; i++ {
		delta = append(delta, github.Event{ID: "d" + strconv.Itoa(i)})
	}

	batch, dropped := Throttle(delta, 3)
	assert.Equal(t, 4, dropped)
	assert.Equal(t, []string{"d2", "d1", "d0"}, ids(batch))

	batch, dropped = Throttle(delta[:2], 3)
	assert.Zero(t, dropped)
	assert.Equal(t, []string{"d1", "d0"}, ids(batch))

	assert.Equal(t, "d0", delta[0].ID, "Throttle mutated its input")
}

func TestThrottleDefaultLimit(t *testing.T) {
	t.Parallel()
	delta := mkEvents("a", "b", "c", "d", "e", "f", "g")
	batch, dropped := Throttle(delta, 0)
	require.Len(t, batch, DefaultMaxPerCycle)
	assert.Equal(t, 2, dropped)
	assert.Equal(t, "e", batch[0].ID)
	assert.Equal(t, "a", batch[len(batch)-1].ID)

	empty, dropped := Throttle(nil, 3)
	assert.Empty(t, empty)
	assert.Zero(t, dropped)
}

func TestCursorAdvance(t *testing.T) {
	t.Parallel()
	cur := At("old")
	assert.Equal(t, cur, cur.Advance(nil), "empty fetch moved the cursor")
	assert.Equal(t, At("new"), cur.Advance(mkEvents("new", "old")))

	armed := Cursor{}.Advance(mkEvents("x"))
	assert.True(t, armed.Set)
	assert.Equal(t, "x", armed.LastSeenID)
}
