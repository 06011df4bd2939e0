package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

var (
	storageDrivers = map[string]bool{
		"": true, "memory": true, "file": true, "sqlite": true, "sqlite3": true,
		"mysql": true, "postgres": true, "postgresql": true, "pgx": true, "redis": true,
	}
	sessionDrivers = map[string]bool{"": true, "memory": true, "redis": true}
)

// Validate checks what can be checked without touching the network.
// All problems are joined into one error.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	dur := func(path, raw string) {
		_, err := ParseDurationField(path, raw)
		add(err)
	}

	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		add(fmt.Errorf("telegram.token: required (or set %s)", EnvTelegramToken))
	}
	if g := strings.TrimSpace(cfg.Telegram.GroupLog); g != "" {
		if _, err := strconv.ParseInt(g, 10, 64); err != nil {
			add(fmt.Errorf("telegram.group_log: must be a chat id, got %q", g))
		}
	}
	dur("telegram.poll_timeout", cfg.Telegram.PollTimeout)

	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			add(fmt.Errorf("scheduler.timezone: %w", err))
		}
	}

	dur("task_engine.default_timeout", cfg.TaskEngine.DefaultTimeout)
	dur("task_engine.max_queue_delay", cfg.TaskEngine.MaxQueueDelay)
	if cfg.TaskEngine.Workers < 0 || cfg.TaskEngine.QueueSize < 0 || cfg.TaskEngine.HistorySize < 0 {
		add(errors.New("task_engine: sizes must be >= 0"))
	}

	dur("broadcast.send_timeout", cfg.Broadcast.SendTimeout)
	if cfg.Broadcast.Workers < 0 || cfg.Broadcast.RatePerSec < 0 {
		add(errors.New("broadcast: workers and rate_per_sec must be >= 0"))
	}

	seen := map[string]bool{}
	for i, v := range cfg.Post.Variants {
		name := strings.ToLower(strings.TrimSpace(v.Name))
		switch {
		case name == "":
			add(fmt.Errorf("post.variants[%d].name: required", i))
		case seen[name]:
			add(fmt.Errorf("post.variants[%d].name: duplicate %q", i, name))
		case strings.TrimSpace(v.TutorialLink) == "":
			add(fmt.Errorf("post.variants[%d].tutorial_link: required", i))
		}
		seen[name] = true
	}

	driver := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if !storageDrivers[driver] {
		add(fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver))
	}
	if (driver == "mysql" || driver == "postgres" || driver == "postgresql" || driver == "pgx") && strings.TrimSpace(cfg.Storage.DSN) == "" {
		add(fmt.Errorf("storage.dsn: required for %s (or set %s)", driver, EnvStorageDSN))
	}
	dur("storage.busy_timeout", cfg.Storage.BusyTimeout)

	if !sessionDrivers[strings.ToLower(strings.TrimSpace(cfg.Session.Driver))] {
		add(fmt.Errorf("session.driver: unknown driver %q", cfg.Session.Driver))
	}
	dur("session.redis.ttl", cfg.Session.Redis.TTL)

	if cfg.Events.NSQ.Enabled && strings.TrimSpace(cfg.Events.NSQ.Topic) == "" {
		add(errors.New("events.nsq.topic: required when nsq is enabled"))
	}

	if cfg.Ops.Enabled {
		dur("ops.read_timeout", cfg.Ops.ReadTimeout)
		dur("ops.write_timeout", cfg.Ops.WriteTimeout)
		if addr := strings.TrimSpace(cfg.Ops.Addr); addr != "" {
			if _, _, err := net.SplitHostPort(addr); err != nil {
				add(fmt.Errorf("ops.addr: %w", err))
			}
		}
	}
	return errors.Join(errs...)
}
