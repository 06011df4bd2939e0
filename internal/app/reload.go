package app

import (
	"context"
	"strings"
	"time"

	"postbot/internal/config"
	logx "postbot/pkg/logx"
)

// reloadLoop applies published configs until ctx ends. Bursts are coalesced
// to the newest config.
func (a *App) reloadLoop(ctx context.Context) error {
	sub := a.cfgm.Subscribe(8)
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
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						next = newer
					}
				default:
					break drain
				}
			}
			a.applyConfig(ctx, last, next)
			last = next
		}
	}
}

// applyConfig hot-applies the live sections and warns about the rest.
func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	changed, attrs := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(changed) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(changed, ","))}, attrs...)
	a.log.Debug("config change summary", fields...)

	a.logs.Apply(mapLogConfig(newCfg))
	a.router.SetOwners(newCfg.Telegram.OwnerUserIDs)
	a.exec.Apply(mapBroadcastConfig(newCfg))

	if ec, err := mapTaskEngineConfig(newCfg); err != nil {
		a.log.Warn("invalid task_engine config; keeping previous", logx.Err(err))
	} else {
		a.engine.Apply(ctx, ec)
	}

	a.applyScheduler(ctx, oldCfg, newCfg)

	if restart := config.RequiresRestart(oldCfg, newCfg, changed); len(restart) > 0 {
		a.log.Warn("config change needs a restart to take effect", logx.Strings("sections", restart))
	}
	a.log.Info("config reloaded", fields...)
}

// applyScheduler toggles triggering and moves the reconcile interval. The
// timezone stays at its boot value.
func (a *App) applyScheduler(ctx context.Context, oldCfg, cfg *config.Config) {
	sc := mapSchedulerConfig(cfg)
	sc.Timezone = a.tz
	wasEnabled := a.sched.Enabled()
	a.sched.Apply(sc)

	if spec := reconcileSpec(cfg); oldCfg == nil || spec != reconcileSpec(oldCfg) {
		if err := a.sched.AddSchedule(reconcileJob, spec, 0, a.reconcile); err != nil {
			a.log.Warn("invalid scheduler.reconcile_every; keeping previous", logx.Err(err))
		}
	}

	switch {
	case wasEnabled && !sc.Enabled:
		a.log.Info("scheduler disabled via config")
		stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		a.sched.Stop(stopCtx)
		cancel()
	case !wasEnabled && sc.Enabled:
		a.log.Info("scheduler enabled via config")
		a.sched.Start(ctx)
		if _, err := a.delivery.Reseed(ctx); err != nil {
			a.log.Warn("rearm after enable incomplete", logx.Err(err))
		}
	}
}
