package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"postbot/internal/broadcast"
	"postbot/internal/channel"
	"postbot/internal/config"
	"postbot/internal/conversation"
	"postbot/internal/delivery"
	"postbot/internal/eventbus"
	"postbot/internal/ops"
	"postbot/internal/runtime/lifecycle"
	rtsup "postbot/internal/runtime/supervisor"
	"postbot/internal/schedule"
	"postbot/internal/session"
	"postbot/internal/storage"
	"postbot/internal/task/engine"
	"postbot/internal/task/scheduler"
	kit "postbot/internal/transport"
	telegram "postbot/internal/transport/telegram/adapter"
	"postbot/internal/transport/telegram/router"
	logx "postbot/pkg/logx"
)

var _ telegramPorts = (*telegram.Adapter)(nil)

var errAdapterNotReady = errors.New("telegram adapter not ready")

const reconcileJob = "post.reconcile"

type App struct {
	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service

	tg       *telegram.Adapter
	store    storage.Store
	sessions session.Store
	bus      *eventbus.MemBus
	sink     *eventbus.NSQSink

	engine   *engine.Service
	sched    *scheduler.Service
	exec     *broadcast.Executor
	posts    *schedule.Store
	channels *channel.Registry
	delivery *delivery.Service
	conv     *conversation.Engine
	router   *router.Router
	ops      *ops.Server
	sd       *lifecycle.Notifier

	// tz is the boot timezone; stored fire times are bound to it.
	tz        string
	startedAt time.Time
	updates   chan kit.Update
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := validateMapped(cfg); err != nil {
		return nil, err
	}

	// Alerts go out through the adapter, which needs the logger to exist first.
	var tgRef atomic.Pointer[telegram.Adapter]
	logSvc, log := logx.New(mapLogConfig(cfg), func(ctx context.Context, chatID int64, threadID int, text string) error {
		tg := tgRef.Load()
		if tg == nil {
			return errAdapterNotReady
		}
		return alertSender(tg)(ctx, chatID, threadID, text)
	})

	tg, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: config.DurationOr(cfg.Telegram.PollTimeout, 10*time.Second),
	}, log.With(logx.String("comp", "telegram")))
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	tgRef.Store(tg)
	log = log.With(logx.String("comp", "app"))

	sc := mapStorageConfig(cfg)
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	log.Info("storage opened", logx.String("driver", sc.Driver))

	sessions, err := session.Open(mapSessionConfig(cfg), log.With(logx.String("comp", "session")))
	if err != nil {
		_ = store.Close()
		_ = logSvc.Close()
		return nil, err
	}

	bus := eventbus.New()
	var sink *eventbus.NSQSink
	if nc := mapNSQConfig(cfg); nc.Enabled {
		if sink, err = eventbus.NewNSQSink(nc, log); err != nil {
			_ = sessions.Close()
			_ = store.Close()
			_ = logSvc.Close()
			return nil, err
		}
	}

	// validateMapped already ran these; errors here are impossible.
	engCfg, _ := mapTaskEngineConfig(cfg)
	catalog, _ := buildCatalog(cfg)

	eng := engine.New(engCfg, log.With(logx.String("comp", "taskengine")), bus)
	sched := scheduler.New(mapSchedulerConfig(cfg), eng, log.With(logx.String("comp", "scheduler")))
	loc := sched.Location()

	posts := schedule.NewStore(store, loc, log.With(logx.String("comp", "schedule")))
	channels := channel.NewRegistry(store, chatVerifier{tg: tg}, log.With(logx.String("comp", "channels")))
	exec := broadcast.New(mapBroadcastConfig(cfg), mediaSender{tg: tg}, log.With(logx.String("comp", "broadcast")))

	deliv := delivery.New(delivery.Config{Footer: cfg.Post.CaptionFooter}, delivery.Deps{
		Catalog:  catalog,
		Channels: channels,
		Posts:    posts,
		Exec:     exec,
		Sched:    sched,
		Notifier: userNotifier{tg: tg},
		Bus:      bus,
		Log:      log,
	})
	conv := conversation.New(conversation.Config{
		Location:    loc,
		DisplayZone: cfg.Scheduler.DisplayZone,
	}, conversation.Deps{
		Sessions: sessions,
		Channels: channels,
		Poster:   deliv,
		Posts:    posts,
		Catalog:  catalog,
		Log:      log,
	})
	rt := router.New(router.Config{Owners: cfg.Telegram.OwnerUserIDs}, tg, conv, log)

	a := &App{
		cfgm:     cfgm,
		log:      log,
		logs:     logSvc,
		tg:       tg,
		store:    store,
		sessions: sessions,
		bus:      bus,
		sink:     sink,
		engine:   eng,
		sched:    sched,
		exec:     exec,
		posts:    posts,
		channels: channels,
		delivery: deliv,
		conv:     conv,
		router:   rt,
		sd:       lifecycle.NewNotifier(log),
		tz:       mapSchedulerConfig(cfg).Timezone,
		updates:  make(chan kit.Update, 256),
	}
	a.ops = ops.New(ops.Deps{Status: a.status, Posts: posts, Channels: channels}, log)
	return a, nil
}

// validateMapped covers what config.Validate cannot see: catalog rules and
// schedule syntax owned by other packages.
func validateMapped(cfg *config.Config) error {
	if _, err := buildCatalog(cfg); err != nil {
		return err
	}
	if _, err := mapTaskEngineConfig(cfg); err != nil {
		return err
	}
	if _, err := scheduler.ParseSchedule(reconcileSpec(cfg)); err != nil {
		return fmt.Errorf("scheduler.reconcile_every: %w", err)
	}
	return nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	a.startedAt = time.Now()
	runCtx := a.sup.Context()

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error { return validateMapped(cfg) })

	a.engine.Start(runCtx)

	cfg := a.cfgm.Get()
	if err := a.sched.AddSchedule(reconcileJob, reconcileSpec(cfg), 0, a.reconcile); err != nil {
		return fmt.Errorf("scheduler.reconcile_every: %w", err)
	}
	if a.sched.Enabled() {
		a.sched.Start(runCtx)
		if n, err := a.delivery.Reseed(runCtx); err == nil {
			a.log.Info("pending posts rearmed", logx.Int("count", n))
		}
	} else {
		a.log.Warn("scheduler disabled; scheduled posts will not fire")
	}

	if err := a.tg.Start(runCtx, a.updates); err != nil {
		return err
	}
	a.sup.Go("telegram.router", func(c context.Context) error {
		return a.router.Run(c, a.updates)
	})

	if a.sink != nil {
		a.sup.GoRestart("events.nsq", func(c context.Context) error {
			return a.sink.Run(c, a.bus)
		}, rtsup.WithRestartBackoff(time.Second, 30*time.Second))
	}

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go("eventbus.log", func(c context.Context) error {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return nil
			case e, ok := <-events:
				if !ok {
					return nil
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})

	if err := a.ops.Apply(runCtx, mapOpsConfig(cfg)); err != nil {
		a.log.Warn("ops server not started", logx.Err(err))
	}

	a.sup.Go("config.reload", a.reloadLoop)
	a.sup.Go("config.watch", a.cfgm.Watch)
	a.sup.Go("systemd.watchdog", a.sd.Watchdog)

	a.sd.Ready()
	a.log.Info("app started", logx.String("tz", a.sched.Location().String()))
	return nil
}

// reconcile arms pending posts that lost their timer, e.g. after a failed
// enqueue or a scheduler restart.
func (a *App) reconcile(ctx context.Context) error {
	_, err := a.delivery.Reseed(ctx)
	return err
}

func (a *App) status() ops.Status {
	tasks := a.engine.Snapshot()
	sched := a.sched.Snapshot()
	st := ops.Status{
		OK:        a.sup != nil && a.sup.Context().Err() == nil && a.sup.Err() == nil,
		StartedAt: a.startedAt,
		Tasks:     &tasks,
		Scheduler: &sched,
		Supervisors: map[string]rtsup.Snapshot{
			"app":              a.sup.Snapshot(),
			"telegram.adapter": a.tg.Supervisor().Snapshot(),
			"telegram.router":  a.router.Supervisor().Snapshot(),
			"task.engine":      a.engine.Supervisor().Snapshot(),
		},
	}
	return st
}

func (a *App) Stop(ctx context.Context, reason lifecycle.StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", reason.String()))
	a.sd.Stopping()

	// Cancel first so background loops start unwinding immediately.
	a.sup.Cancel()

	// step bounds one shutdown step so a stuck component cannot stall the rest.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

		stepCtx := ctx
		var cancel context.CancelFunc
		if max > 0 {
			// respect the caller's deadline; never extend it
			if dl, ok := ctx.Deadline(); ok {
				if rem := time.Until(dl); rem <= 0 {
					max = 0
				} else if rem < max {
					max = rem
				}
			}
			if max > 0 {
				stepCtx, cancel = context.WithTimeout(ctx, max)
				defer cancel()
			}
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			took := time.Since(start)
			if took >= 500*time.Millisecond {
				a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
			} else {
				a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
			}
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Err(stepCtx.Err()),
				logx.Duration("elapsed", time.Since(start)),
			)
			go func() {
				err := <-done
				a.log.Warn("stop step finished after deadline",
					logx.String("name", name), logx.Err(err), logx.Duration("took", time.Since(start)))
			}()
		}
	}

	// Triggers first so nothing new reaches the engine, then the engine
	// drains in-flight broadcasts while the adapter can still send.
	step("scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	step("taskengine", 3*time.Second, func(c context.Context) error { a.engine.Stop(c); return nil })
	step("ops", time.Second, func(c context.Context) error { a.ops.Stop(c); return nil })
	step("events.nsq", time.Second, func(context.Context) error {
		if a.sink != nil {
			a.sink.Stop()
		}
		return nil
	})
	step("adapter", 2*time.Second, func(c context.Context) error { return a.tg.Stop(c) })
	step("session", time.Second, func(context.Context) error { return a.sessions.Close() })
	step("storage", time.Second, func(context.Context) error { return a.store.Close() })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
