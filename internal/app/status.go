package app

import (
	"time"

	"ghwatch/internal/monitor"
	rtsup "ghwatch/internal/runtime/supervisor"
)

// Status is the /status document.
type Status struct {
	Account    string             `json:"account"`
	StartedAt  time.Time          `json:"started_at"`
	Uptime     string             `json:"uptime"`
	Armed      bool               `json:"armed"`
	LastSeenID string             `json:"last_seen_id,omitempty"`
	Schedule   ScheduleStatus     `json:"schedule"`
	LastCycle  *CycleStatus       `json:"last_cycle,omitempty"`
	Recent     []monitor.Delivery `json:"recent"`
	Goroutines []rtsup.Stats      `json:"goroutines"`
}

type ScheduleStatus struct {
	Spec    string    `json:"spec"`
	Next    time.Time `json:"next"`
	Runs    uint64    `json:"runs"`
	Skipped uint64    `json:"skipped"`
}

type CycleStatus struct {
	ID          string    `json:"id"`
	Started     time.Time `json:"started"`
	Took        string    `json:"took"`
	NotModified bool      `json:"not_modified,omitempty"`
	Fetched     int       `json:"fetched"`
	New         int       `json:"new"`
	Dropped     int       `json:"dropped"`
	Sent        int       `json:"sent"`
	Failed      int       `json:"failed"`
	Skipped     int       `json:"skipped"`
	Duplicates  int       `json:"duplicates"`
	Err         string    `json:"error,omitempty"`
}

func cycleStatus(rep monitor.Report) *CycleStatus {
	cs := &CycleStatus{
		ID:          rep.ID,
		Started:     rep.Started,
		Took:        rep.Took.Round(time.Millisecond).String(),
		NotModified: rep.NotModified,
		Fetched:     rep.Fetched,
		New:         rep.New,
		Dropped:     rep.Dropped,
		Sent:        rep.Sent,
		Failed:      rep.Failed,
		Skipped:     rep.Skipped,
		Duplicates:  rep.Duplicates,
	}
	if rep.Err != nil {
		cs.Err = rep.Err.Error()
	}
	return cs
}

func (a *App) Status() Status {
	cur := a.mon.Cursor()
	st := Status{
		Armed:      cur.Set,
		LastSeenID: cur.LastSeenID,
		StartedAt:  a.startedAt,
		Uptime:     time.Since(a.startedAt).Round(time.Second).String(),
		Schedule: ScheduleStatus{
			Spec:    a.sched.Spec().String(),
			Next:    a.sched.Next(),
			Runs:    a.sched.Runs(),
			Skipped: a.sched.Skipped(),
		},
		Recent: a.mon.History(),
	}
	if cfg := a.cfgm.Get(); cfg != nil {
		st.Account = cfg.GitHub.Account
	}
	if rep, ok := a.mon.LastReport(); ok {
		st.LastCycle = cycleStatus(rep)
	}
	if a.sup != nil {
		st.Goroutines = a.sup.Snapshot()
	}
	return st
}
