// Package delivery turns a finished draft into channel posts, either right
// away or at a scheduled instant, and reports back to the owner.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"postbot/internal/broadcast"
	"postbot/internal/eventbus"
	"postbot/internal/post"
	"postbot/internal/schedule"
	"postbot/internal/task/scheduler"
	logx "postbot/pkg/logx"
)

var (
	ErrNoChannels     = errors.New("delivery: no channels registered")
	ErrUnknownVariant = errors.New("delivery: unknown variant")
	ErrIncomplete     = errors.New("delivery: draft is incomplete")
)

// Notifier sends a plain HTML message to a user's private chat.
type Notifier interface {
	NotifyUser(ctx context.Context, userID int64, text string) error
}

type Channels interface {
	List(ctx context.Context, user int64) []string
}

type Broadcaster interface {
	Broadcast(ctx context.Context, media post.Media, caption string, channels []string) []broadcast.Result
}

type Posts interface {
	Append(ctx context.Context, p schedule.ScheduledPost) (schedule.ScheduledPost, error)
	MarkPosted(ctx context.Context, owner int64, fireAt time.Time, success, total int) (bool, error)
	Pending(ctx context.Context) []schedule.ScheduledPost
}

type Scheduler interface {
	ScheduleOnce(at time.Time, jobID string, timeout time.Duration, job scheduler.Job) error
}

type Config struct {
	Footer string
	// FireTimeout bounds one scheduled broadcast. 0 means 10 minutes.
	FireTimeout time.Duration
}

type Deps struct {
	Catalog  *post.Catalog
	Channels Channels
	Posts    Posts
	Exec     Broadcaster
	Sched    Scheduler
	Notifier Notifier
	Bus      eventbus.Bus
	Log      logx.Logger
}

type Service struct {
	cfg Config
	Deps
	log logx.Logger
	now func() time.Time
}

func New(cfg Config, d Deps) *Service {
	if cfg.FireTimeout <= 0 {
		cfg.FireTimeout = 10 * time.Minute
	}
	return &Service{cfg: cfg, Deps: d, log: d.Log.With(logx.String("comp", "delivery")), now: time.Now}
}

// Report is the outcome of one broadcast.
type Report struct {
	Results []broadcast.Result
	OK      int
	Total   int
}

func newReport(results []broadcast.Result) Report {
	ok, total := broadcast.Summary(results)
	return Report{Results: results, OK: ok, Total: total}
}

func (r Report) Succeeded() []string {
	var out []string
	for _, res := range r.Results {
		if res.OK {
			out = append(out, res.ChannelID)
		}
	}
	return out
}

func (r Report) Failed() []string { return broadcast.Failed(r.Results) }

// StatusText renders the status notification sent to the owner.
func (r Report) StatusText(title string) string {
	text := "<b>📊 " + title + "</b>\n\n" + fmt.Sprintf("Posted to %d/%d channels", r.OK, r.Total)
	if bd := r.Breakdown(); bd != "" {
		text += "\n\n" + bd
	}
	return text
}

// Breakdown lists succeeded and failed channel ids as HTML.
func (r Report) Breakdown() string {
	var b strings.Builder
	if ok := r.Succeeded(); len(ok) > 0 {
		b.WriteString("✅ <b>Successfully posted to:</b>\n")
		for _, id := range ok {
			b.WriteString("- Channel ID: <code>" + html.EscapeString(id) + "</code>\n")
		}
	}
	if failed := r.Failed(); len(failed) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("❌ <b>Failed to post to:</b>\n")
		for _, id := range failed {
			b.WriteString("- Channel ID: <code>" + html.EscapeString(id) + "</code>\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (s *Service) resolve(content post.Content) (post.VariantInfo, error) {
	if content.Media == nil || strings.TrimSpace(content.LinkText) == "" || content.Variant == "" {
		return post.VariantInfo{}, ErrIncomplete
	}
	info, ok := s.Catalog.Lookup(content.Variant)
	if !ok {
		return post.VariantInfo{}, fmt.Errorf("%w: %q", ErrUnknownVariant, content.Variant)
	}
	return info, nil
}

func (s *Service) publish(typ string, data any) {
	if s.Bus != nil {
		s.Bus.Publish(eventbus.Event{Type: typ, Time: s.now(), Data: data})
	}
}

// DispatchedEvent is the Data of post.dispatched and post.fired.
type DispatchedEvent struct {
	UserID  int64    `json:"user_id"`
	JobID   string   `json:"job_id,omitempty"`
	Variant string   `json:"variant"`
	OK      int      `json:"ok"`
	Total   int      `json:"total"`
	Failed  []string `json:"failed,omitempty"`
}

// ScheduledEvent is the Data of post.scheduled.
type ScheduledEvent struct {
	UserID   int64     `json:"user_id"`
	JobID    string    `json:"job_id"`
	FireAt   time.Time `json:"fire_at"`
	Channels int       `json:"channels"`
}
