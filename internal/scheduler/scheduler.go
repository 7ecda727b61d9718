// Package scheduler drives the poll cycle: one run at start, then one run per
// tick, never two at once.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	logx "ghwatch/pkg/logx"
)

// Job is one poll cycle. It must return promptly once ctx is done.
type Job func(ctx context.Context)

// Config selects when the job runs. Location defaults to time.Local.
type Config struct {
	Schedule string
	Location *time.Location
}

// Scheduler runs a Job once at Start and then on every tick, never two at
// a time.
type Scheduler struct {
	spec Spec
	job  Job
	log  logx.Logger

	c     *cron.Cron
	entry cron.EntryID

	guarded cron.Job
	running sync.Mutex
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	detach  func() bool
	started atomic.Bool

	runs    atomic.Uint64
	skipped atomic.Uint64
}

// New parses the schedule; nothing runs until Start.
func New(cfg Config, job Job, log logx.Logger) (*Scheduler, error) {
	if job == nil {
		return nil, errors.New("scheduler: job is nil")
	}
	spec, err := ParseSchedule(cfg.Schedule)
	if err != nil {
		return nil, err
	}
	sched, err := spec.schedule()
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	s := &Scheduler{spec: spec, job: job, log: log.With(logx.String("comp", "scheduler"))}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	cl := cronLogger{log: s.log}
	s.guarded = cron.NewChain(cron.Recover(cl)).Then(cron.FuncJob(s.trigger))
	s.c = cron.New(cron.WithLocation(loc), cron.WithLogger(cl))
	s.entry = s.c.Schedule(sched, s.guarded)
	return s, nil
}

// Spec returns the parsed schedule.
func (s *Scheduler) Spec() Spec { return s.spec }

// Start runs the job once right away and then on every tick until ctx is
// done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return fmt.Errorf("scheduler already started")
	}
	if ctx != nil {
		s.detach = context.AfterFunc(ctx, s.cancel)
	}
	s.c.Start()
	s.log.Info("scheduler started",
		logx.String("schedule", s.spec.String()),
		logx.String("kind", s.spec.Kind.String()),
		logx.Time("next", s.Next()),
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.guarded.Run()
	}()
	return nil
}

// Stop cancels the running cycle, stops ticking and waits for in-flight work
// or ctx, whichever comes first.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()
	if s.detach != nil {
		s.detach()
	}
	cronDone := s.c.Stop()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("scheduler stopped", logx.Uint64("runs", s.runs.Load()), logx.Uint64("skipped", s.skipped.Load()))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// trigger runs the job unless a previous run is still in flight, in which
// case the tick is dropped and counted.
func (s *Scheduler) trigger() {
	if s.ctx.Err() != nil {
		return
	}
	if !s.running.TryLock() {
		n := s.skipped.Add(1)
		s.log.Warn("previous cycle still running, tick skipped", logx.Uint64("skipped_total", n))
		return
	}
	defer s.running.Unlock()
	s.runs.Add(1)
	s.job(s.ctx)
}

// Next is the next scheduled tick, zero before Start.
func (s *Scheduler) Next() time.Time {
	return s.c.Entry(s.entry).Next
}

func (s *Scheduler) Runs() uint64    { return s.runs.Load() }
func (s *Scheduler) Skipped() uint64 { return s.skipped.Load() }

// cronLogger routes robfig/cron diagnostics through logx.
type cronLogger struct {
	log logx.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, kv(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(kv(keysAndValues), logx.Err(err))...)
}

func kv(keysAndValues []interface{}) []logx.Field {
	out := make([]logx.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		k, ok := keysAndValues[i].(string)
		if !ok {
			k = fmt.Sprint(keysAndValues[i])
		}
		out = append(out, logx.Any(k, keysAndValues[i+1]))
	}
	return out
}
