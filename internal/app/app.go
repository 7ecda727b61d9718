// Package app wires the watcher together and owns its lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"

	"ghwatch/internal/config"
	"ghwatch/internal/eventbus"
	"ghwatch/internal/github"
	"ghwatch/internal/monitor"
	"ghwatch/internal/observability/httpserver"
	"ghwatch/internal/observability/metrics"
	"ghwatch/internal/render"
	rtsup "ghwatch/internal/runtime/supervisor"
	"ghwatch/internal/scheduler"
	"ghwatch/internal/transport/telegram"
	logx "ghwatch/pkg/logx"
	"ghwatch/pkg/systemd"
)

type Options struct {
	Version string
	// Transports override the HTTP round trippers (tests).
	GitHubTransport   http.RoundTripper
	TelegramTransport http.RoundTripper
}

type App struct {
	opts Options
	cfgm *config.ConfigManager

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	gh    *github.Client
	tg    *telegram.Client
	mon   *monitor.Monitor
	sched *scheduler.Scheduler
	met   *metrics.Metrics
	http  *httpserver.Server

	sup       *rtsup.Supervisor
	sentryOn  bool
	startedAt time.Time
}

// lazySender lets the log service exist before the Telegram client it
// mirrors into.
type lazySender struct {
	c atomic.Pointer[telegram.Client]
}

func (l *lazySender) SendPlain(ctx context.Context, chatID int64, text string) error {
	c := l.c.Load()
	if c == nil {
		return errors.New("telegram client not ready")
	}
	return c.SendPlain(ctx, chatID, text)
}

// New builds every component from the committed config of cfgm. Nothing
// runs until Start.
func New(cfgm *config.ConfigManager, opts Options) (*App, error) {
	cfg := cfgm.Get()
	if cfg == nil {
		return nil, errors.New("config not loaded")
	}
	d, err := cfg.Durations()
	if err != nil {
		return nil, err
	}

	a := &App{opts: opts, cfgm: cfgm}

	if cfg.Sentry.Enabled() {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
			Release:     "ghwatch@" + versionOr(opts.Version),
			SampleRate:  cfg.Sentry.SampleRate,
		}); err != nil {
			return nil, fmt.Errorf("sentry init: %w", err)
		}
		a.sentryOn = true
	}

	sender := &lazySender{}
	a.logs, a.log = logx.New(mapLogging(cfg), sender)

	a.tg, err = newTelegramClient(cfg, d, opts.TelegramTransport, a.log.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}
	sender.c.Store(a.tg)

	a.gh, err = NewGitHubClient(cfg, opts.GitHubTransport, a.log.With(logx.String("comp", "github")))
	if err != nil {
		return nil, err
	}

	a.bus = eventbus.New()
	a.mon, err = monitor.New(mapMonitor(cfg, d), monitor.Deps{
		Fetcher:  a.gh,
		Sender:   a.tg,
		Renderer: render.NewRegistry(),
		Bus:      a.bus,
		Log:      a.log,
	})
	if err != nil {
		return nil, err
	}

	var loc *time.Location
	if tz := strings.TrimSpace(cfg.Poll.Timezone); tz != "" {
		if loc, err = time.LoadLocation(tz); err != nil {
			return nil, fmt.Errorf("poll.timezone: %w", err)
		}
	}
	a.sched, err = scheduler.New(scheduler.Config{Schedule: cfg.Poll.Schedule, Location: loc}, a.runCycle, a.log)
	if err != nil {
		return nil, fmt.Errorf("poll.schedule: %w", err)
	}

	a.met = metrics.New(func() float64 { return float64(a.sched.Skipped()) })
	if cfg.HTTP.Enabled {
		a.http = httpserver.New(mapHTTP(cfg, d), httpserver.Deps{
			Metrics: a.met.Handler(),
			Health:  a.health,
			Status:  func() any { return a.Status() },
		}, a.log)
	}

	a.log = a.log.With(logx.String("comp", "app"))
	return a, nil
}

func versionOr(v string) string {
	if v == "" {
		return "dev"
	}
	return v
}

func (a *App) runCycle(ctx context.Context) {
	rep := a.mon.RunCycle(ctx)
	if rep.Err != nil && !errors.Is(rep.Err, context.Canceled) {
		_, _ = systemd.Status("last cycle failed: " + rep.Err.Error())
	}
}

func (a *App) health() error {
	if a.sup == nil {
		return errors.New("not started")
	}
	if err := a.sup.Err(); err != nil {
		return err
	}
	return nil
}

// Done is closed once the app is stopping, either through Stop or after a
// fatal error.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	var hook func(string, any)
	if a.sentryOn {
		hook = func(_ string, p any) { sentry.CurrentHub().Recover(p) }
	}
	a.sup = rtsup.New(ctx,
		rtsup.WithLogger(a.log),
		rtsup.WithCancelOnError(true),
		rtsup.WithPanicHook(hook),
	)
	a.startedAt = time.Now()
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))

	a.sup.GoRestart("config.watch", a.cfgm.Watch)
	a.sup.Go("config.apply", a.applyReloads)
	a.sup.Go("metrics", func(c context.Context) error { return a.met.Run(c, a.bus) })
	a.sup.Go("eventbus.log", a.logBus)
	if a.http != nil {
		a.sup.GoRestart("http", a.http.Run, rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second))
	}

	if err := a.sched.Start(a.sup.Context()); err != nil {
		a.sup.Cancel()
		return err
	}

	cfg := a.cfgm.Get()
	status := "watching " + cfg.GitHub.Account + " every " + a.sched.Spec().String()
	if _, err := systemd.Ready(status); err != nil {
		a.log.Warn("systemd notify failed", logx.Err(err))
	}
	a.sup.Go("systemd.watchdog", func(c context.Context) error {
		return systemd.Watchdog(c, func() bool { return a.health() == nil }, a.log)
	})

	a.log.Info("started",
		logx.String("account", cfg.GitHub.Account),
		logx.String("schedule", a.sched.Spec().String()),
		logx.Int("max_per_cycle", cfg.Poll.MaxPerCycle),
		logx.String("version", versionOr(a.opts.Version)),
	)
	return nil
}

// Stop drains the scheduler (cancelling an in-flight cycle between sends),
// then every background goroutine, then flushes log sinks.
func (a *App) Stop(ctx context.Context) error {
	_, _ = systemd.Stopping()
	a.log.Info("stopping")

	var errs []error
	if err := a.sched.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("scheduler: %w", err))
	}
	if a.sup != nil {
		if err := a.sup.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, err)
		}
	}
	if a.sentryOn {
		sentry.Flush(2 * time.Second)
	}
	if err := a.logs.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// applyReloads applies hot-reloadable settings; the rest is reported as
// needing a restart.
func (a *App) applyReloads(ctx context.Context) error {
	sub := a.cfgm.Subscribe(4)
	defer a.cfgm.Unsubscribe(sub)
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return nil
		case next, ok := <-sub:
			if !ok {
				return nil
			}
			a.applyConfig(last, next)
			last = next
		}
	}
}

func (a *App) applyConfig(prev, next *config.Config) {
	changed, attrs, restart := config.SummarizeChange(prev, next)
	if len(changed) == 0 {
		a.log.Debug("config reload had no effective changes")
		return
	}
	a.log.Info("config changed", append([]logx.Field{logx.String("sections", strings.Join(changed, ","))}, attrs...)...)
	if len(restart) > 0 {
		a.log.Warn("restart required for some changes", logx.String("sections", strings.Join(restart, ",")))
	}

	a.logs.Apply(mapLogging(next))
	d, err := next.Durations()
	if err != nil {
		a.log.Warn("config durations invalid", logx.Err(err))
		return
	}
	a.mon.ApplyTunables(next.Poll.MaxPerCycle, disabledAsNegative(d.Pacing))
}

func (a *App) logBus(ctx context.Context) error {
	ch, unsub := a.bus.Subscribe(128)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			a.log.Trace("bus event", logx.String("topic", e.Topic), logx.Time("time", e.Time))
		}
	}
}
