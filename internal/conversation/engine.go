package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"postbot/internal/channel"
	"postbot/internal/delivery"
	"postbot/internal/post"
	"postbot/internal/schedule"
	"postbot/internal/session"
	"postbot/internal/task/scheduler"
	logx "postbot/pkg/logx"
)

type Poster interface {
	PostNow(ctx context.Context, user int64, content post.Content) (delivery.Report, error)
	Schedule(ctx context.Context, user int64, content post.Content, at time.Time) (schedule.ScheduledPost, error)
}

type Channels interface {
	Register(ctx context.Context, user int64, channelID string) (channel.Outcome, channel.Access, error)
	ListVerified(ctx context.Context, user int64) []channel.Entry
}

type Listings interface {
	ListFor(ctx context.Context, owner int64) schedule.Listing
}

type Config struct {
	// Location is used to resolve HH:MM. nil means Local.
	Location *time.Location
	// DisplayZone is the tag shown next to times, e.g. "IST".
	DisplayZone string
}

type Deps struct {
	Sessions session.Store
	Channels Channels
	Poster   Poster
	Posts    Listings
	Catalog  *post.Catalog
	Log      logx.Logger
	Now      func() time.Time
}

// Engine is safe for concurrent use, but events for one user must arrive in
// order; the transport serializes them.
type Engine struct {
	cfg Config
	d   Deps
	log logx.Logger

	mu     sync.Mutex
	states map[int64]State
}

func New(cfg Config, d Deps) *Engine {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if strings.TrimSpace(cfg.DisplayZone) == "" {
		cfg.DisplayZone = "IST"
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Engine{cfg: cfg, d: d, log: d.Log.With(logx.String("comp", "conversation")), states: map[int64]State{}}
}

// State returns the user's current state; unknown users are Idle.
func (e *Engine) State(user int64) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.states[user]
}

func (e *Engine) set(user int64, s State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s == Idle {
		delete(e.states, user)
		return
	}
	e.states[user] = s
}

// Handle applies one event and returns the replies to send, in order.
func (e *Engine) Handle(ctx context.Context, ev Event) []Reply {
	state := e.State(ev.User)
	e.log.Debug("event", logx.Int64("user_id", ev.User), logx.String("kind", string(ev.Kind)), logx.String("state", state.String()))

	switch ev.Kind {
	case KindStart, KindMainMenu:
		e.set(ev.User, Idle)
		return []Reply{welcome()}
	case KindHelp:
		return []Reply{help()}
	case KindCancel:
		e.dropSession(ctx, ev.User)
		e.set(ev.User, Idle)
		return []Reply{cancelled()}
	case KindCreatePost:
		e.set(ev.User, AwaitingThumbnail)
		return []Reply{say(txtAskThumbnail, btnCancel)}
	case KindManageChannels:
		e.set(ev.User, Idle)
		return []Reply{channelMenu()}
	case KindAddChannel:
		e.set(ev.User, AddingChannel)
		return []Reply{say(txtAskChannel, btnCancel)}
	case KindListChannels:
		e.set(ev.User, Idle)
		return channelList(e.d.Channels.ListVerified(ctx, ev.User))
	case KindCheckScheduled:
		e.set(ev.User, Idle)
		return []Reply{scheduledListing(e.d.Posts.ListFor(ctx, ev.User), e.cfg.DisplayZone)}
	case KindVariant:
		return e.onVariant(ctx, ev)
	case KindPostNow:
		return e.onPostNow(ctx, ev.User)
	case KindSchedule:
		return e.onSchedule(ctx, ev.User)
	case KindMedia, KindText:
		return e.onMessage(ctx, state, ev)
	default:
		return nil
	}
}

func (e *Engine) onMessage(ctx context.Context, state State, ev Event) []Reply {
	switch state {
	case AwaitingThumbnail:
		if ev.Kind != KindMedia || ev.Media == nil {
			return []Reply{say(txtBadThumbnail, btnCancel)}
		}
		// A fresh thumbnail starts a fresh draft.
		if err := e.d.Sessions.Put(ctx, ev.User, session.Session{Media: ev.Media, UpdatedAt: e.d.Now()}); err != nil {
			return e.failed(ev.User, "store session", err)
		}
		e.set(ev.User, AwaitingLink)
		return []Reply{say(txtAskLink, btnCancel)}

	case AwaitingLink:
		link := strings.TrimSpace(ev.Text)
		if ev.Kind != KindText || link == "" {
			return []Reply{say(txtLinkAsText, btnCancel)}
		}
		s, ok := e.session(ctx, ev.User)
		if !ok || s.Media == nil {
			return e.expired(ev.User)
		}
		s.LinkText = ev.Text
		s.UpdatedAt = e.d.Now()
		if err := e.d.Sessions.Put(ctx, ev.User, s); err != nil {
			return e.failed(ev.User, "store session", err)
		}
		e.set(ev.User, AwaitingVariant)
		return []Reply{askVariant(e.d.Catalog)}

	case AwaitingVariant:
		return []Reply{askVariant(e.d.Catalog)}

	case AwaitingDispatchChoice:
		return []Reply{askDispatch()}

	case AwaitingScheduleTime:
		if ev.Kind != KindText {
			return []Reply{say(txtBadTime, btnCancel)}
		}
		return e.onTime(ctx, ev.User, ev.Text)

	case AddingChannel:
		return e.onChannel(ctx, ev)

	case AwaitingNextAction:
		e.set(ev.User, Idle)
		return []Reply{nextAction()}

	default:
		return []Reply{welcome()}
	}
}

func (e *Engine) onVariant(ctx context.Context, ev Event) []Reply {
	s, ok := e.session(ctx, ev.User)
	if !ok || s.Media == nil || s.LinkText == "" {
		return e.expired(ev.User)
	}
	info, found := e.d.Catalog.Lookup(post.Variant(ev.Payload))
	if !found {
		return []Reply{say(txtUnknownOption), askVariant(e.d.Catalog)}
	}
	s.Variant = info.Name
	s.UpdatedAt = e.d.Now()
	if err := e.d.Sessions.Put(ctx, ev.User, s); err != nil {
		return e.failed(ev.User, "store session", err)
	}
	e.set(ev.User, AwaitingDispatchChoice)
	return []Reply{askDispatch()}
}

// draft returns the complete session for a dispatch step, or ok=false when
// there isn't one.
func (e *Engine) draft(ctx context.Context, user int64) (post.Content, bool) {
	s, ok := e.session(ctx, user)
	if !ok || !s.Complete() {
		return post.Content{}, false
	}
	return post.Content{Media: s.Media, LinkText: s.LinkText, Variant: s.Variant}, true
}

func (e *Engine) onPostNow(ctx context.Context, user int64) []Reply {
	content, ok := e.draft(ctx, user)
	if !ok {
		return e.expired(user)
	}
	rep, err := e.d.Poster.PostNow(ctx, user, content)
	// One dispatch per session, whatever the outcome.
	e.dropSession(ctx, user)
	e.set(user, Idle)
	switch {
	case errors.Is(err, delivery.ErrNoChannels):
		return []Reply{say(txtNoChannels, btnChannels, btnMenu)}
	case err != nil:
		e.log.Error("post now failed", logx.Int64("user_id", user), logx.Err(err))
		return []Reply{say(txtFailed, btnMenu)}
	}
	return []Reply{postReport(rep)}
}

func (e *Engine) onSchedule(ctx context.Context, user int64) []Reply {
	if _, ok := e.draft(ctx, user); !ok {
		return e.expired(user)
	}
	e.set(user, AwaitingScheduleTime)
	return []Reply{askTime(e.cfg.DisplayZone)}
}

func (e *Engine) onTime(ctx context.Context, user int64, text string) []Reply {
	content, ok := e.draft(ctx, user)
	if !ok {
		return e.expired(user)
	}
	at, err := scheduler.NextClock(text, e.d.Now().In(e.cfg.Location))
	if err != nil {
		return []Reply{say(txtBadTime, btnCancel)}
	}
	p, err := e.d.Poster.Schedule(ctx, user, content, at)
	switch {
	case errors.Is(err, schedule.ErrAlreadyScheduled):
		return []Reply{say(txtAlreadyScheduled, btnCancel)}
	case errors.Is(err, delivery.ErrNoChannels):
		e.dropSession(ctx, user)
		e.set(user, Idle)
		return []Reply{say(txtNoChannels, btnChannels, btnMenu)}
	case err != nil:
		e.log.Error("schedule failed", logx.Int64("user_id", user), logx.Err(err))
		return []Reply{say(txtFailed, btnCancel)}
	}
	e.dropSession(ctx, user)
	e.set(user, Idle)
	return scheduledOK(p.FireAt, e.cfg.DisplayZone)
}

func (e *Engine) onChannel(ctx context.Context, ev Event) []Reply {
	id := ev.ForwardedFrom
	if id == "" {
		if ev.Kind != KindText {
			return []Reply{say(txtBadChannel, btnCancel)}
		}
		parsed, err := channel.ParseChannelID(ev.Text)
		if err != nil {
			return []Reply{say(txtBadChannel, btnCancel)}
		}
		id = parsed
	}

	outcome, access, err := e.d.Channels.Register(ctx, ev.User, id)
	switch {
	case errors.Is(err, channel.ErrNoPermission):
		return []Reply{say(txtNoPermission, btnCancel)}
	case errors.Is(err, channel.ErrUnreachable):
		e.log.Warn("channel not reachable", logx.Int64("user_id", ev.User), logx.String("channel", id), logx.Err(err))
		return []Reply{say(txtUnreachable, btnCancel)}
	case errors.Is(err, channel.ErrInvalidChannelID):
		return []Reply{say(txtBadChannel, btnCancel)}
	case err != nil:
		e.log.Error("channel register failed", logx.Int64("user_id", ev.User), logx.String("channel", id), logx.Err(err))
		return []Reply{say(txtFailed, btnCancel)}
	}

	e.set(ev.User, AwaitingNextAction)
	if outcome == channel.AlreadyPresent {
		return []Reply{say(txtAlreadyAdded), nextAction()}
	}
	return []Reply{channelAdded(access.Title), nextAction()}
}

func (e *Engine) session(ctx context.Context, user int64) (session.Session, bool) {
	s, ok, err := e.d.Sessions.Get(ctx, user)
	if err != nil {
		e.log.Warn("session read failed", logx.Int64("user_id", user), logx.Err(err))
		return session.Session{}, false
	}
	return s, ok
}

func (e *Engine) dropSession(ctx context.Context, user int64) {
	if err := e.d.Sessions.Delete(ctx, user); err != nil {
		e.log.Warn("session delete failed", logx.Int64("user_id", user), logx.Err(err))
	}
}

func (e *Engine) expired(user int64) []Reply {
	e.set(user, Idle)
	return []Reply{say(txtExpired, btnMenu)}
}

func (e *Engine) failed(user int64, op string, err error) []Reply {
	e.log.Error(op+" failed", logx.Int64("user_id", user), logx.Err(err))
	e.set(user, Idle)
	return []Reply{say(txtFailed, btnMenu)}
}
