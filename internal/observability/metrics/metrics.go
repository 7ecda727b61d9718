// Package metrics turns dispatch-loop bus events into Prometheus series.
package metrics

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ghwatch/internal/eventbus"
	"ghwatch/internal/monitor"
)

const namespace = "ghwatch"

type Metrics struct {
	reg *prometheus.Registry

	cycles        *prometheus.CounterVec
	events        *prometheus.CounterVec
	dropped       prometheus.Counter
	fetchFailures prometheus.Counter
	cycleSeconds  prometheus.Histogram
	lastSuccess   prometheus.Gauge
	armed         prometheus.Gauge
}

// New registers the collectors on a private registry. skipped reports
// scheduler ticks dropped because a cycle was still running.
func New(skipped func() float64) *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cycles_total",
			Help: "Poll cycles by result (ok, not_modified, fetch_error, panic, interrupted).",
		}, []string{"result"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_total",
			Help: "Dispatch attempts by outcome.",
		}, []string{"outcome", "type"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_dropped_total",
			Help: "Events discarded by the per-cycle throttle.",
		}),
		fetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "fetch_failures_total",
			Help: "Failed activity feed fetches.",
		}),
		cycleSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "cycle_duration_seconds",
			Help:    "Wall time of one poll cycle.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_success_timestamp_seconds",
			Help: "Unix time of the last cycle that fetched successfully.",
		}),
		armed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "cursor_armed",
			Help: "1 once the cursor has been armed.",
		}),
	}
	m.reg.MustRegister(
		m.cycles, m.events, m.dropped, m.fetchFailures, m.cycleSeconds, m.lastSuccess, m.armed,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if skipped != nil {
		m.reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Name: "ticks_skipped_total",
			Help: "Scheduler ticks skipped because the previous cycle was still running.",
		}, skipped))
	}
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Observe folds one bus event into the series.
func (m *Metrics) Observe(e eventbus.Event) {
	switch e.Topic {
	case eventbus.TopicCycleCompleted:
		rep, ok := e.Data.(monitor.Report)
		if !ok {
			return
		}
		m.cycles.WithLabelValues(cycleResult(rep)).Inc()
		m.cycleSeconds.Observe(rep.Took.Seconds())
		if rep.Cursor.Set {
			m.armed.Set(1)
		}
		if !rep.Started.IsZero() && (rep.Err == nil || rep.Fetched > 0 || rep.NotModified) {
			m.lastSuccess.Set(float64(rep.Started.Unix()))
		}
	case eventbus.TopicDispatched, eventbus.TopicSendFailed, eventbus.TopicRenderFailed, eventbus.TopicSkipped:
		if d, ok := e.Data.(monitor.Delivery); ok {
			m.events.WithLabelValues(string(d.Outcome), d.Type).Inc()
		}
	case eventbus.TopicThrottled:
		if n, ok := e.Data.(int); ok {
			m.dropped.Add(float64(n))
		}
	case eventbus.TopicFetchFailed:
		m.fetchFailures.Inc()
	}
}

func cycleResult(rep monitor.Report) string {
	switch {
	case rep.NotModified:
		return "not_modified"
	case rep.Err == nil:
		return "ok"
	case errors.Is(rep.Err, context.Canceled), errors.Is(rep.Err, context.DeadlineExceeded):
		return "interrupted"
	case rep.Fetched == 0:
		return "fetch_error"
	default:
		return "panic"
	}
}

// Run consumes bus events until ctx is done.
func (m *Metrics) Run(ctx context.Context, bus eventbus.Bus) error {
	ch, unsub := bus.Subscribe(256)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-ch:
			if !ok {
				return nil
			}
			m.Observe(e)
		}
	}
}
