// Package systemd speaks the sd_notify protocol. Every call is a no-op when
// the process is not run by systemd (NOTIFY_SOCKET unset).
package systemd

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "ghwatch/pkg/logx"
)

// Ready reports startup completion (Type=notify units).
func Ready(status string) (bool, error) {
	return daemon.SdNotify(false, daemon.SdNotifyReady+"\nSTATUS="+status)
}

// Stopping reports that shutdown began.
func Stopping() (bool, error) {
	return daemon.SdNotify(false, daemon.SdNotifyStopping)
}

// Status updates the free-form unit status line.
func Status(status string) (bool, error) {
	return daemon.SdNotify(false, "STATUS="+status)
}

// Watchdog pings the service manager at half of WatchdogSec until ctx is
// done. healthy gates each ping so a wedged process gets restarted. It
// returns immediately when the unit has no watchdog.
func Watchdog(ctx context.Context, healthy func() bool, log logx.Logger) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return err
	}
	t := time.NewTicker(interval / 2)
	defer t.Stop()
	log.Debug("systemd watchdog enabled", logx.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if healthy != nil && !healthy() {
				log.Warn("unhealthy; skipping watchdog ping")
				continue
			}
			if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
				log.Warn("watchdog ping failed", logx.Err(err))
			}
		}
	}
}
