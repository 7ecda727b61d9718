// Package monitor runs polling cycles: fetch the feed, decide what is new,
// render it and hand it to the sink.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"ghwatch/internal/eventbus"
	"ghwatch/internal/feed"
	"ghwatch/internal/github"
	"ghwatch/internal/render"
	logx "ghwatch/pkg/logx"
)

// Fetcher returns the current feed, newest first.
type Fetcher interface {
	Fetch(ctx context.Context) ([]github.Event, error)
}

// Sender delivers one rendered notification.
type Sender interface {
	Send(ctx context.Context, p render.Payload) error
}

// Renderer turns an event into a payload; ok is false for unknown types.
type Renderer interface {
	Render(ev github.Event) (render.Payload, bool, error)
}

const (
	DefaultPacing       = 2 * time.Second
	DefaultDeliveredTTL = 24 * time.Hour
	DefaultHistorySize  = 100
)

// Config holds the per-account dispatch settings.
type Config struct {
	Account string
	// MaxPerCycle caps dispatches per cycle (feed.DefaultMaxPerCycle when <= 0).
	MaxPerCycle int
	// Pacing is the minimum quiet time between the end of one send and the
	// start of the next. Negative disables it.
	Pacing time.Duration
	// DeliveredTTL is how long a delivered event id is remembered so it is
	// never sent twice. Negative disables the guard.
	DeliveredTTL time.Duration
	HistorySize  int
	Now          func() time.Time
}

// Deps are the collaborators of a Monitor. Fetcher and Sender are required.
type Deps struct {
	Fetcher  Fetcher
	Sender   Sender
	Renderer Renderer
	Bus      eventbus.Bus
	Log      logx.Logger
}

// Monitor owns the cursor. RunCycle must not be called concurrently; the
// scheduler serializes it.
type Monitor struct {
	cfg   Config
	fetch Fetcher
	send  Sender
	rend  Renderer
	bus   eventbus.Bus
	log   logx.Logger

	delivered *gocache.Cache

	mu      sync.Mutex
	pace    *rate.Limiter
	cursor  feed.Cursor
	max     int
	history []Delivery
	last    *Report
}

// New validates deps and fills defaults. The cursor starts unset.
func New(cfg Config, d Deps) (*Monitor, error) {
	if d.Fetcher == nil {
		return nil, errors.New("monitor: fetcher is nil")
	}
	if d.Sender == nil {
		return nil, errors.New("monitor: sender is nil")
	}
	if d.Renderer == nil {
		d.Renderer = render.NewRegistry()
	}
	if d.Bus == nil {
		d.Bus = eventbus.Nop{}
	}
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	if cfg.Pacing == 0 {
		cfg.Pacing = DefaultPacing
	}
	if cfg.DeliveredTTL == 0 {
		cfg.DeliveredTTL = DefaultDeliveredTTL
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = DefaultHistorySize
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	m := &Monitor{
		cfg:   cfg,
		fetch: d.Fetcher,
		send:  d.Sender,
		rend:  d.Renderer,
		bus:   d.Bus,
		log:   d.Log.With(logx.String("comp", "monitor")),
		pace:  rate.NewLimiter(paceLimit(cfg.Pacing), 1),
		max:   cfg.MaxPerCycle,
	}
	if cfg.DeliveredTTL > 0 {
		// No janitor goroutine; expired ids are swept at the end of each cycle.
		m.delivered = gocache.New(cfg.DeliveredTTL, 0)
	}
	return m, nil
}

func paceLimit(d time.Duration) rate.Limit {
	if d <= 0 {
		return rate.Inf
	}
	return rate.Every(d)
}

// Cursor returns the current watermark.
func (m *Monitor) Cursor() feed.Cursor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor
}

// SetCursor replaces the watermark.
func (m *Monitor) SetCursor(c feed.Cursor) {
	m.mu.Lock()
	m.cursor = c
	m.mu.Unlock()
}

// ApplyTunables updates the throttle limit and pacing delay between cycles.
func (m *Monitor) ApplyTunables(maxPerCycle int, pacing time.Duration) {
	m.mu.Lock()
	m.max = maxPerCycle
	m.pace.SetLimit(paceLimit(pacing))
	m.mu.Unlock()
	m.log.Info("tunables applied", logx.Int("max_per_cycle", maxPerCycle), logx.Duration("pacing", pacing))
}

func (m *Monitor) limiter() *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pace
}

// rest empties the pacing bucket so the next send waits a full interval
// counted from now, however long the previous send took.
func (m *Monitor) rest() {
	m.mu.Lock()
	lim := rate.NewLimiter(m.pace.Limit(), 1)
	lim.Allow()
	m.pace = lim
	m.mu.Unlock()
}

func (m *Monitor) maxPerCycle() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.max
}

// RunCycle performs one polling cycle. It never returns an error and never
// panics; everything that went wrong is in the Report.
func (m *Monitor) RunCycle(ctx context.Context) (rep Report) {
	start := m.cfg.Now()
	rep = Report{ID: uuid.NewString(), Started: start}
	log := m.log.With(logx.String("cycle", rep.ID))

	defer func() {
		if r := recover(); r != nil {
			rep.Err = fmt.Errorf("cycle panic: %v", r)
			log.Error("cycle panic recovered", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
		rep.Took = time.Since(start)
		rep.Cursor = m.Cursor()
		m.finish(rep)
		log.Debug("cycle done",
			logx.Int("fetched", rep.Fetched),
			logx.Int("sent", rep.Sent),
			logx.Int("failed", rep.Failed),
			logx.Duration("took", rep.Took),
		)
	}()

	events, err := m.fetch.Fetch(ctx)
	switch {
	case err != nil && ctx.Err() != nil:
		rep.Err = ctx.Err()
		log.Info("fetch interrupted", logx.Err(err))
		return rep
	case errors.Is(err, github.ErrNotModified):
		rep.NotModified = true
		log.Debug("feed not modified")
		return rep
	case err != nil:
		rep.Err = err
		log.Warn("fetch failed", logx.Err(err))
		m.publish(eventbus.TopicFetchFailed, err.Error())
		return rep
	}
	rep.Fetched = len(events)

	cur := m.Cursor()
	delta, firstRun := feed.ExtractDelta(events, cur)
	if firstRun {
		if len(events) > 0 {
			m.arm(ctx, log, events, &rep)
		}
		return rep
	}
	// Whatever happens while dispatching, the next cycle starts after the
	// newest fetched event.
	defer m.SetCursor(cur.Advance(events))

	rep.New = len(delta)
	batch, dropped := feed.Throttle(delta, m.maxPerCycle())
	if dropped > 0 {
		rep.Dropped = dropped
		log.Warn("too many new events, dropping oldest",
			logx.Int("new", len(delta)),
			logx.Int("dropped", dropped),
		)
		m.publish(eventbus.TopicThrottled, dropped)
	}

	for _, ev := range batch {
		if err := ctx.Err(); err != nil {
			rep.Err = err
			log.Info("cycle interrupted", logx.Err(err))
			return rep
		}
		m.dispatch(ctx, log, rep.ID, ev, &rep)
	}
	return rep
}

func (m *Monitor) arm(ctx context.Context, log logx.Logger, events []github.Event, rep *Report) {
	m.SetCursor(feed.At(events[0].ID))
	rep.Armed = true
	log.Info("cursor armed",
		logx.String("account", m.cfg.Account),
		logx.String("last_seen", events[0].ID),
		logx.Int("skipped", len(events)),
	)
	m.publish(eventbus.TopicArmed, events[0].ID)

	err := m.send.Send(ctx, render.Armed(m.cfg.Account, m.cfg.Now(), len(events)))
	m.rest()
	if err != nil {
		rep.Failed++
		log.Error("armed notification failed", logx.Err(err))
		return
	}
	rep.Sent++
}

func (m *Monitor) dispatch(ctx context.Context, log logx.Logger, cycle string, ev github.Event, rep *Report) {
	d := Delivery{Cycle: cycle, EventID: ev.ID, Type: ev.Type, Repo: ev.Repo.Name}
	log = log.With(logx.String("event_id", ev.ID), logx.String("type", ev.Type))

	// A panic in one event fails that event only; the rest of the batch
	// is still dispatched.
	stage, topic := OutcomeRenderFailed, eventbus.TopicRenderFailed
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if stage == OutcomeSendFailed {
			m.rest()
		}
		rep.Failed++
		log.Error("event panic recovered", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		d.Outcome, d.Err = stage, fmt.Sprintf("panic: %v", r)
		m.record(d, topic)
	}()

	if m.delivered != nil {
		if _, seen := m.delivered.Get(ev.ID); seen {
			rep.Duplicates++
			log.Debug("already delivered, skipping")
			d.Outcome = OutcomeDuplicate
			m.record(d, eventbus.TopicSkipped)
			return
		}
	}

	p, ok, err := m.rend.Render(ev)
	if !ok {
		rep.Skipped++
		log.Debug("unrecognized event type, skipping")
		d.Outcome = OutcomeSkipped
		m.record(d, eventbus.TopicSkipped)
		return
	}
	if err != nil {
		rep.Failed++
		log.Warn("render failed", logx.Err(err))
		d.Outcome, d.Err = OutcomeRenderFailed, err.Error()
		m.record(d, eventbus.TopicRenderFailed)
		return
	}

	stage, topic = OutcomeSendFailed, eventbus.TopicSendFailed
	if err := m.limiter().Wait(ctx); err != nil {
		rep.Failed++
		d.Outcome, d.Err = OutcomeSendFailed, err.Error()
		m.record(d, eventbus.TopicSendFailed)
		return
	}
	err = m.send.Send(ctx, p)
	m.rest()
	if err != nil {
		rep.Failed++
		log.Error("send failed", logx.Err(err))
		d.Outcome, d.Err = OutcomeSendFailed, err.Error()
		m.record(d, eventbus.TopicSendFailed)
		return
	}
	if m.delivered != nil {
		m.delivered.SetDefault(ev.ID, struct{}{})
	}
	rep.Sent++
	log.Info("event delivered", logx.String("repo", ev.Repo.Name))
	d.Outcome = OutcomeSent
	m.record(d, eventbus.TopicDispatched)
}

func (m *Monitor) record(d Delivery, topic string) {
	d.At = m.cfg.Now()
	m.mu.Lock()
	m.history = append(m.history, d)
	if over := len(m.history) - m.cfg.HistorySize; over > 0 {
		m.history = append(m.history[:0:0], m.history[over:]...)
	}
	m.mu.Unlock()
	m.publish(topic, d)
}

func (m *Monitor) finish(rep Report) {
	if m.delivered != nil {
		m.delivered.DeleteExpired()
	}
	m.mu.Lock()
	m.last = &rep
	m.mu.Unlock()
	m.publish(eventbus.TopicCycleCompleted, rep)
}

func (m *Monitor) publish(topic string, data any) {
	m.bus.Publish(eventbus.Event{Topic: topic, Data: data})
}

// History returns the most recent deliveries, oldest first.
func (m *Monitor) History() []Delivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Delivery, len(m.history))
	copy(out, m.history)
	return out
}

// LastReport returns the report of the latest finished cycle.
func (m *Monitor) LastReport() (Report, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.last == nil {
		return Report{}, false
	}
	return *m.last, true
}
