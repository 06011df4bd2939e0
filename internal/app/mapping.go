package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"postbot/internal/broadcast"
	"postbot/internal/config"
	"postbot/internal/eventbus"
	"postbot/internal/ops"
	"postbot/internal/post"
	"postbot/internal/session"
	"postbot/internal/storage"
	"postbot/internal/task/engine"
	"postbot/internal/task/scheduler"
	logx "postbot/pkg/logx"
)

const defaultReconcileEvery = "1m"

func mapLogConfig(cfg *config.Config) logx.Config {
	l := cfg.Logging
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File:    logx.FileConfig{Enabled: l.File.Enabled, Path: l.File.Path},
		Alert: logx.AlertConfig{
			Enabled:    l.Telegram.Enabled,
			ChatID:     groupLogChat(cfg.Telegram.GroupLog),
			ThreadID:   l.Telegram.ThreadID,
			MinLevel:   l.Telegram.MinLevel,
			RatePerSec: l.Telegram.RatePerSec,
		},
	}
}

// groupLogChat returns 0 (alerts inert) for an empty or malformed id;
// Validate already rejected the malformed case.
func groupLogChat(raw string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func mapTaskEngineConfig(cfg *config.Config) (engine.Config, error) {
	te := cfg.TaskEngine
	defTimeout, err := config.ParseDurationField("task_engine.default_timeout", te.DefaultTimeout)
	if err != nil {
		return engine.Config{}, err
	}
	maxDelay, err := config.ParseDurationField("task_engine.max_queue_delay", te.MaxQueueDelay)
	if err != nil {
		return engine.Config{}, err
	}
	out := engine.Config{
		Enabled:        true,
		Workers:        te.Workers,
		QueueSize:      te.QueueSize,
		DefaultTimeout: defTimeout,
		MaxQueueDelay:  maxDelay,
		HistorySize:    te.HistorySize,
	}
	if out.Workers <= 0 {
		out.Workers = 2
	}
	if out.QueueSize <= 0 {
		out.QueueSize = 256
	}
	if out.HistorySize == 0 {
		out.HistorySize = 200
	}
	return out, nil
}

func mapSchedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{Enabled: cfg.Scheduler.IsEnabled(), Timezone: strings.TrimSpace(cfg.Scheduler.Timezone)}
}

func mapBroadcastConfig(cfg *config.Config) broadcast.Config {
	b := cfg.Broadcast
	return broadcast.Config{
		Workers:     b.Workers,
		RatePerSec:  b.RatePerSec,
		SendTimeout: config.DurationOr(b.SendTimeout, 15*time.Second),
	}
}

func mapStorageConfig(cfg *config.Config) storage.Config {
	s := cfg.Storage
	return storage.Config{
		Driver:      s.Driver,
		Path:        s.Path,
		DSN:         s.DSN,
		BusyTimeout: config.DurationOr(s.BusyTimeout, 0),
		KeyPrefix:   s.KeyPrefix,
	}
}

func mapSessionConfig(cfg *config.Config) session.Config {
	r := cfg.Session.Redis
	return session.Config{
		Driver: cfg.Session.Driver,
		Redis: session.RedisConfig{
			Addr:      r.Addr,
			Username:  r.Username,
			Password:  r.Password,
			DB:        r.DB,
			KeyPrefix: r.KeyPrefix,
			TTL:       config.DurationOr(r.TTL, 0),
		},
	}
}

func mapNSQConfig(cfg *config.Config) eventbus.NSQConfig {
	n := cfg.Events.NSQ
	return eventbus.NSQConfig{Enabled: n.Enabled, Addr: n.Addr, Topic: n.Topic}
}

func mapOpsConfig(cfg *config.Config) ops.Config {
	o := cfg.Ops
	return ops.Config{
		Enabled:       o.Enabled,
		Addr:          o.Addr,
		Token:         o.Token,
		AllowInsecure: o.AllowInsecure,
		ReadTimeout:   config.DurationOr(o.ReadTimeout, 10*time.Second),
		WriteTimeout:  config.DurationOr(o.WriteTimeout, 0),
	}
}

func buildCatalog(cfg *config.Config) (*post.Catalog, error) {
	items := make([]post.VariantInfo, 0, len(cfg.Post.Variants))
	for _, v := range cfg.Post.Variants {
		items = append(items, post.VariantInfo{
			Name:         post.Variant(v.Name),
			Label:        v.Label,
			TutorialLink: v.TutorialLink,
		})
	}
	c, err := post.NewCatalog(items)
	if err != nil {
		return nil, fmt.Errorf("post.variants: %w", err)
	}
	return c, nil
}

func reconcileSpec(cfg *config.Config) string {
	if s := strings.TrimSpace(cfg.Scheduler.ReconcileEvery); s != "" {
		return s
	}
	return defaultReconcileEvery
}
