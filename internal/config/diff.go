package config

import (
	"reflect"
	"slices"
	"sort"
	"strings"

	logx "postbot/pkg/logx"
)

// SummarizeConfigChange returns the changed top-level sections and safe
// structured attrs for logging. Secrets (the bot token, ops token, redis
// password, DSNs) are reported only as "set" flags.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 24)
	mark := func(section string, fields ...logx.Field) {
		changed = append(changed, section)
		attrs = append(attrs, fields...)
	}

	o, n := oldCfg.Telegram, newCfg.Telegram
	if o.Token != n.Token || strings.TrimSpace(o.PollTimeout) != strings.TrimSpace(n.PollTimeout) ||
		!slices.Equal(o.OwnerUserIDs, n.OwnerUserIDs) || strings.TrimSpace(o.GroupLog) != strings.TrimSpace(n.GroupLog) {
		mark("telegram",
			logx.Bool("telegram.token_changed", o.Token != n.Token),
			logx.String("telegram.poll_timeout", strings.TrimSpace(n.PollTimeout)),
			logx.Int("telegram.owner_count", len(n.OwnerUserIDs)),
			logx.Bool("telegram.group_log_set", strings.TrimSpace(n.GroupLog) != ""),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		l := newCfg.Logging
		mark("logging",
			logx.String("logging.level", l.Level),
			logx.Bool("logging.console", l.Console),
			logx.Bool("logging.file_enabled", l.File.Enabled),
			logx.Bool("logging.telegram_enabled", l.Telegram.Enabled),
		)
	}

	if !reflect.DeepEqual(oldCfg.Scheduler, newCfg.Scheduler) {
		s := newCfg.Scheduler
		mark("scheduler",
			logx.Bool("scheduler.enabled", s.IsEnabled()),
			logx.String("scheduler.timezone", s.Timezone),
			logx.String("scheduler.reconcile_every", s.ReconcileEvery),
			logx.String("scheduler.display_zone", s.DisplayZone),
		)
	}

	if oldCfg.TaskEngine != newCfg.TaskEngine {
		te := newCfg.TaskEngine
		mark("task_engine",
			logx.Int("task_engine.workers", te.Workers),
			logx.Int("task_engine.queue_size", te.QueueSize),
			logx.String("task_engine.default_timeout", te.DefaultTimeout),
			logx.String("task_engine.max_queue_delay", te.MaxQueueDelay),
			logx.Int("task_engine.history_size", te.HistorySize),
		)
	}

	if oldCfg.Broadcast != newCfg.Broadcast {
		b := newCfg.Broadcast
		mark("broadcast",
			logx.Int("broadcast.workers", b.Workers),
			logx.Int("broadcast.rate_per_sec", b.RatePerSec),
			logx.String("broadcast.send_timeout", b.SendTimeout),
		)
	}

	if !reflect.DeepEqual(oldCfg.Post, newCfg.Post) {
		mark("post", logx.Int("post.variant_count", len(newCfg.Post.Variants)))
	}

	if oldCfg.Storage != newCfg.Storage {
		s := newCfg.Storage
		mark("storage",
			logx.String("storage.driver", s.Driver),
			logx.Bool("storage.path_set", strings.TrimSpace(s.Path) != ""),
			logx.Bool("storage.dsn_set", strings.TrimSpace(s.DSN) != ""),
			logx.String("storage.key_prefix", s.KeyPrefix),
		)
	}

	if oldCfg.Session != newCfg.Session {
		mark("session",
			logx.String("session.driver", newCfg.Session.Driver),
			logx.String("session.redis.addr", newCfg.Session.Redis.Addr),
			logx.Bool("session.redis.password_set", newCfg.Session.Redis.Password != ""),
		)
	}

	if oldCfg.Events != newCfg.Events {
		mark("events",
			logx.Bool("events.nsq.enabled", newCfg.Events.NSQ.Enabled),
			logx.String("events.nsq.topic", newCfg.Events.NSQ.Topic),
		)
	}

	if oldCfg.Ops != newCfg.Ops {
		op := newCfg.Ops
		mark("ops",
			logx.Bool("ops.enabled", op.Enabled),
			logx.String("ops.addr", op.Addr),
			logx.Bool("ops.token_set", strings.TrimSpace(op.Token) != ""),
			logx.Bool("ops.allow_insecure", op.AllowInsecure),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

// restartSections cannot be swapped in a running process.
var restartSections = map[string]bool{
	"post": true, "storage": true, "session": true, "events": true, "ops": true,
}

// RequiresRestart filters changed down to the sections that only take
// effect after a restart. Telegram counts only when the token or poll
// timeout moved; owners and the alert chat are applied live. Scheduler
// counts only when the timezone or its display label moved.
func RequiresRestart(oldCfg, newCfg *Config, changed []string) []string {
	var out []string
	for _, s := range changed {
		switch {
		case restartSections[s]:
			out = append(out, s)
		case s == "telegram" && oldCfg != nil && newCfg != nil &&
			(oldCfg.Telegram.Token != newCfg.Telegram.Token ||
				strings.TrimSpace(oldCfg.Telegram.PollTimeout) != strings.TrimSpace(newCfg.Telegram.PollTimeout)):
			out = append(out, s)
		case s == "scheduler" && oldCfg != nil && newCfg != nil &&
			(strings.TrimSpace(oldCfg.Scheduler.Timezone) != strings.TrimSpace(newCfg.Scheduler.Timezone) ||
				strings.TrimSpace(oldCfg.Scheduler.DisplayZone) != strings.TrimSpace(newCfg.Scheduler.DisplayZone)):
			out = append(out, s)
		}
	}
	return out
}
