package scheduler

import (
	"context"
	"sync"
	"time"

	"postbot/internal/task/engine"
	logx "postbot/pkg/logx"

	"github.com/robfig/cron/v3"
)

type Config struct {
	Enabled  bool
	Timezone string // IANA name, e.g. "Asia/Kolkata"; empty means Local
}

type Job func(ctx context.Context) error

// Enqueuer is the part of engine.Service the scheduler feeds.
type Enqueuer interface {
	Enqueue(t engine.Task) error
}

type scheduleDef struct {
	name    string
	spec    string // cron spec or "@every <d>"
	timeout time.Duration
	job     Job
	opt     engine.TaskOptions
	entryID cron.EntryID
	spread  time.Duration
}

type onceDef struct {
	at      time.Time
	timeout time.Duration
	job     Job
	timer   *time.Timer
	ver     uint64
}

type Service struct {
	mu     sync.Mutex
	log    logx.Logger
	cfg    Config
	loc    *time.Location
	engine Enqueuer

	parser cron.Parser
	c      *cron.Cron
	defs   []scheduleDef

	enqMu       sync.Mutex
	lastEnqWarn map[string]time.Time

	// one-shot state, guarded by tmu
	tmu     sync.Mutex
	running bool
	once    map[string]*onceDef
	fired   map[string]struct{}
	onceSeq uint64
}

type ScheduleInfo struct {
	Name    string        `json:"name"`
	Spec    string        `json:"spec"`
	Timeout time.Duration `json:"timeout"`
	Next    time.Time     `json:"next,omitempty"`
	Prev    time.Time     `json:"prev,omitempty"`
}

type OnceInfo struct {
	JobID string    `json:"job_id"`
	At    time.Time `json:"at"`
}

type Snapshot struct {
	Enabled   bool           `json:"enabled"`
	Timezone  string         `json:"timezone"`
	Schedules []ScheduleInfo `json:"schedules"`
	Once      []OnceInfo     `json:"once"`
	Fired     int            `json:"fired"`
}
