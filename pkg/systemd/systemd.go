// Package systemd reports service state to systemd over the notify socket.
// Every call is a no-op when the process was not started by systemd.
package systemd

import (
	"context"
	"time"

	logx "eventbot/pkg/logx"

	"github.com/coreos/go-systemd/v22/daemon"
)

func notify(log logx.Logger, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		log.Debug("sd_notify", logx.String("state", state))
	}
}

func Ready(log logx.Logger)    { notify(log, daemon.SdNotifyReady) }
func Stopping(log logx.Logger) { notify(log, daemon.SdNotifyStopping) }

// Watchdog pings the systemd watchdog at half its interval until ctx ends.
// alive is consulted before each ping; a false result skips the ping so
// systemd restarts a wedged process.
func Watchdog(ctx context.Context, log logx.Logger, alive func() bool) error {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		return err
	}
	if interval <= 0 {
		return nil
	}
	t := time.NewTicker(interval / 2)
	defer t.Stop()
	log.Info("systemd watchdog enabled", logx.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if alive != nil && !alive() {
				log.Warn("skipping watchdog ping: unhealthy")
				continue
			}
			notify(log, daemon.SdNotifyWatchdog)
		}
	}
}
