package lifecycle

import (
	"context"
	"time"

	logx "postbot/pkg/logx"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier speaks sd_notify. Outside systemd (no NOTIFY_SOCKET) every call
// is a silent no-op.
type Notifier struct {
	log    logx.Logger
	notify func(state string) (bool, error)
	every  func() (time.Duration, error)
}

func NewNotifier(log logx.Logger) *Notifier {
	return &Notifier{
		log:    log.With(logx.String("comp", "systemd")),
		notify: func(state string) (bool, error) { return daemon.SdNotify(false, state) },
		every:  func() (time.Duration, error) { return daemon.SdWatchdogEnabled(false) },
	}
}

func (n *Notifier) Ready()    { n.send(daemon.SdNotifyReady) }
func (n *Notifier) Stopping() { n.send(daemon.SdNotifyStopping) }

func (n *Notifier) send(state string) {
	sent, err := n.notify(state)
	if err != nil {
		n.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		n.log.Debug("sd_notify sent", logx.String("state", state))
	}
}

// Watchdog pings systemd at half the configured WatchdogSec until ctx ends.
// It returns immediately when the watchdog isn't enabled for this unit.
func (n *Notifier) Watchdog(ctx context.Context) error {
	interval, err := n.every()
	if err != nil {
		n.log.Warn("watchdog probe failed", logx.Err(err))
		return nil
	}
	if interval <= 0 {
		return nil
	}
	interval /= 2
	n.log.Info("watchdog enabled", logx.Duration("ping_every", interval))

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			n.send(daemon.SdNotifyWatchdog)
		}
	}
}
