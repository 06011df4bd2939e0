package config

type Config struct {
	Telegram   TelegramConfig   `json:"telegram"`
	Logging    LoggingConfig    `json:"logging"`
	Scheduler  SchedulerConfig  `json:"scheduler"`
	TaskEngine TaskEngineConfig `json:"task_engine"`
	Broadcast  BroadcastConfig  `json:"broadcast"`
	Post       PostConfig       `json:"post"`
	Storage    StorageConfig    `json:"storage"`
	Session    SessionConfig    `json:"session"`
	Events     EventsConfig     `json:"events"`
	Ops        OpsConfig        `json:"ops"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// OwnerUserIDs restricts who may talk to the bot. Empty means everyone.
	OwnerUserIDs []int64 `json:"owner_user_ids,omitempty"`
	// GroupLog is the chat id that receives log alerts.
	GroupLog string `json:"group_log,omitempty"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// SchedulerConfig controls one-shot post timers and the reconcile sweep.
//
// Enabled is a pointer so an omitted field means true.
type SchedulerConfig struct {
	Enabled  *bool  `json:"enabled,omitempty"`
	Timezone string `json:"timezone,omitempty"`
	// ReconcileEvery is any schedule spec (Go duration, "@every 1m", cron).
	// Default "1m".
	ReconcileEvery string `json:"reconcile_every,omitempty"`
	// DisplayZone is the label shown next to times. Default "IST".
	DisplayZone string `json:"display_zone,omitempty"`
}

func (s SchedulerConfig) IsEnabled() bool { return s.Enabled == nil || *s.Enabled }

// TaskEngineConfig controls the worker pool that runs fired posts.
//
// Defaults (when fields are omitted/zero):
//   - workers: 2
//   - queue_size: 256
//   - default_timeout: "0s" (disabled)
//   - max_queue_delay: "0s" (disabled)
//   - history_size: 200
type TaskEngineConfig struct {
	Workers        int    `json:"workers,omitempty"`
	QueueSize      int    `json:"queue_size,omitempty"`
	DefaultTimeout string `json:"default_timeout,omitempty"`
	MaxQueueDelay  string `json:"max_queue_delay,omitempty"`
	HistorySize    int    `json:"history_size,omitempty"`
}

type BroadcastConfig struct {
	Workers     int    `json:"workers,omitempty"`      // default 1
	RatePerSec  int    `json:"rate_per_sec,omitempty"` // 0 disables the limiter
	SendTimeout string `json:"send_timeout,omitempty"` // default "15s"
}

type PostConfig struct {
	CaptionFooter string          `json:"caption_footer,omitempty"`
	Variants      []VariantConfig `json:"variants,omitempty"`
}

type VariantConfig struct {
	Name         string `json:"name"`
	Label        string `json:"label,omitempty"`
	TutorialLink string `json:"tutorial_link"`
}

// StorageConfig selects the snapshot store.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./postbot.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	DSN         string `json:"dsn,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
	KeyPrefix   string `json:"key_prefix,omitempty"`
}

type SessionConfig struct {
	Driver string             `json:"driver,omitempty"` // "memory" (default) or "redis"
	Redis  SessionRedisConfig `json:"redis"`
}

type SessionRedisConfig struct {
	Addr      string `json:"addr,omitempty"`
	Username  string `json:"username,omitempty"`
	Password  string `json:"password,omitempty"`
	DB        int    `json:"db,omitempty"`
	KeyPrefix string `json:"key_prefix,omitempty"`
	TTL       string `json:"ttl,omitempty"`
}

type EventsConfig struct {
	NSQ NSQConfig `json:"nsq"`
}

type NSQConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"`
	Topic   string `json:"topic,omitempty"`
}

// OpsConfig controls the operational HTTP server.
//
// Security note:
//   - Prefer binding to localhost (e.g. "127.0.0.1:8081").
//   - If you bind to a non-loopback address, set a token or explicitly allow_insecure.
type OpsConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`  // default: "127.0.0.1:8081"
	Token         string `json:"token,omitempty"` // optional bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	ReadTimeout   string `json:"read_timeout,omitempty"`
	// WriteTimeout defaults to 0 so /debug/pprof/profile can run for 30s+.
	WriteTimeout string `json:"write_timeout,omitempty"`
}
