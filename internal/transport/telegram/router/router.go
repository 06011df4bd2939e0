// Package router turns Telegram updates into conversation events and renders
// the replies. Events of one user are handled in order on a fixed worker.
package router

import (
	"context"
	"hash/fnv"
	"runtime/debug"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	tele "gopkg.in/telebot.v4"

	"postbot/internal/conversation"
	"postbot/internal/post"
	rtsup "postbot/internal/runtime/supervisor"
	kit "postbot/internal/transport"
	logx "postbot/pkg/logx"
	"postbot/pkg/tgui"
)

// CallbackPrefix is the first segment of every callback_data the bot emits.
const CallbackPrefix = "post"

const (
	defaultQueueSize = 64
	textBusy         = "⏳ Busy, try again in a moment."
	textUnauthorized = "⛔ You are not allowed to use this bot."
)

// Conversation is the dialog engine the router feeds.
type Conversation interface {
	Handle(ctx context.Context, ev conversation.Event) []conversation.Reply
}

type Config struct {
	Workers   int // default 4
	QueueSize int // per worker, default 64
	// Owners restricts the bot to these user ids. Empty means everyone.
	Owners        []int64
	HandleTimeout time.Duration // default 2m
}

type Request struct {
	Update     kit.Update
	Chat       kit.ChatTarget
	Event      conversation.Event
	CallbackID string
	ReqID      string
	Logger     logx.Logger
	Replies    int
}

type Router struct {
	cfg     Config
	log     logx.Logger
	adapter kit.Adapter
	conv    Conversation

	mu     sync.RWMutex
	owners []int64

	runMu  sync.Mutex
	sup    *rtsup.Supervisor
	queues []chan *Request
}

func New(cfg Config, adapter kit.Adapter, conv Conversation, log logx.Logger) *Router {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.HandleTimeout <= 0 {
		cfg.HandleTimeout = 2 * time.Minute
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	r := &Router{
		cfg:     cfg,
		log:     log.With(logx.String("comp", "telegram.router")),
		adapter: adapter,
		conv:    conv,
	}
	r.SetOwners(cfg.Owners)
	return r
}

// SetOwners swaps the allow-list. Safe to call during hot-reload.
func (r *Router) SetOwners(owners []int64) {
	cp := append([]int64(nil), owners...)
	r.mu.Lock()
	r.owners = cp
	r.mu.Unlock()
}

func (r *Router) allowed(user int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.owners) == 0 || slices.Contains(r.owners, user)
}

// Supervisor returns the worker supervisor (nil if not running).
func (r *Router) Supervisor() *rtsup.Supervisor {
	r.runMu.Lock()
	defer r.runMu.Unlock()
	return r.sup
}

// Run dispatches updates until ctx ends or updates is closed.
func (r *Router) Run(ctx context.Context, updates <-chan kit.Update) error {
	sup := rtsup.New(ctx, rtsup.WithLogger(r.log), rtsup.WithCancelOnError(false))
	queues := make([]chan *Request, r.cfg.Workers)
	for i := range queues {
		queues[i] = make(chan *Request, r.cfg.QueueSize)
	}
	r.runMu.Lock()
	r.sup, r.queues = sup, queues
	r.runMu.Unlock()

	for i, q := range queues {
		sup.GoRestart("worker."+strconv.Itoa(i), func(c context.Context) error {
			return r.work(c, q)
		}, rtsup.WithRestartBackoff(200*time.Millisecond, 5*time.Second), rtsup.WithPublishFirstError(true))
	}

	if up, ok := r.adapter.(kit.CommandMenuUpdater); ok {
		sup.Go("menu.update", func(c context.Context) error {
			mctx, cancel := context.WithTimeout(c, 5*time.Second)
			defer cancel()
			if err := up.UpdateMenuCommands(mctx, menuCommands()); err != nil {
				r.log.Warn("menu update failed", logx.Err(err))
			}
			return nil
		})
	}

	r.log.Info("dispatcher started", logx.Int("workers", r.cfg.Workers), logx.Int("queue_cap", r.cfg.QueueSize))
	defer func() {
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Stop(wctx)
		cancel()
		r.runMu.Lock()
		r.sup, r.queues = nil, nil
		r.runMu.Unlock()
		r.log.Info("dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			r.dispatch(ctx, queues, up)
		}
	}
}

func (r *Router) work(ctx context.Context, q <-chan *Request) error {
	h := Chain(r.handle,
		MWPanicRecover(r.log),
		MWRequestLog(r.log),
		MWTimeout(r.cfg.HandleTimeout),
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-q:
			func() {
				// Middleware already recovers; this keeps the worker alive if
				// the log path itself blows up.
				defer func() {
					if p := recover(); p != nil {
						r.log.Error("panic in worker", logx.Any("panic", p), logx.Stack(string(debug.Stack())))
					}
				}()
				_ = h(ctx, req)
			}()
		}
	}
}

func (r *Router) handle(ctx context.Context, req *Request) error {
	replies := r.conv.Handle(ctx, req.Event)
	req.Replies = len(replies)
	if req.CallbackID != "" {
		if err := r.adapter.AnswerCallback(ctx, req.CallbackID, ""); err != nil {
			req.Logger.Debug("answer callback failed", logx.Err(err))
		}
	}
	for _, rep := range replies {
		if _, err := render(rep).Send(ctx, r.adapter, req.Chat); err != nil {
			return err
		}
	}
	return nil
}

func (r *Router) dispatch(ctx context.Context, queues []chan *Request, up kit.Update) {
	req, ok := toRequest(up)
	if !ok {
		return
	}
	if !r.allowed(req.Event.User) {
		r.reject(ctx, req, textUnauthorized, "forbidden")
		return
	}
	req.ReqID = uuid.NewString()
	req.Logger = r.log.With(
		logx.String("rid", req.ReqID),
		logx.Int64("user_id", req.Event.User),
	)
	select {
	case queues[workerFor(req.Event.User, len(queues))] <- req:
	default:
		r.reject(ctx, req, textBusy, "busy")
	}
}

func (r *Router) reject(ctx context.Context, req *Request, text, answer string) {
	if req.CallbackID != "" {
		_ = r.adapter.AnswerCallback(ctx, req.CallbackID, answer)
		return
	}
	if _, err := r.adapter.SendText(ctx, req.Chat, text, nil); err != nil {
		r.log.Debug("reject reply failed", logx.Err(err))
	}
}

func workerFor(user int64, n int) int {
	h := fnv.New32a()
	var b [8]byte
	for i := range b {
		b[i] = byte(user >> (8 * i))
	}
	h.Write(b[:])
	return int(h.Sum32() % uint32(n))
}

// toRequest maps an update to a conversation event. Group chatter and
// foreign callbacks are ignored.
func toRequest(up kit.Update) (*Request, bool) {
	switch up.Kind {
	case kit.UpdateMessage:
		m := up.Message
		if m == nil || m.IsGroup {
			return nil, false
		}
		return &Request{
			Update: up,
			Chat:   kit.ChatTarget{ChatID: m.ChatID, ThreadID: m.ThreadID},
			Event:  messageEvent(m),
		}, true
	case kit.UpdateCallback:
		cb := up.Callback
		if cb == nil {
			return nil, false
		}
		prefix, action, payload, ok := tgui.ParseData(cb.Data)
		if !ok || prefix != CallbackPrefix {
			return nil, false
		}
		kind, ok := conversation.ParseKind(action)
		if !ok {
			return nil, false
		}
		return &Request{
			Update:     up,
			Chat:       kit.ChatTarget{ChatID: cb.ChatID, ThreadID: cb.ThreadID},
			Event:      conversation.Event{User: cb.FromID, Kind: kind, Payload: payload},
			CallbackID: cb.ID,
		}, true
	}
	return nil, false
}

func messageEvent(m *kit.Message) conversation.Event {
	ev := conversation.Event{User: m.FromID, Kind: conversation.KindText, Text: m.Text}
	if m.ForwardedFromChat != 0 {
		ev.ForwardedFrom = strconv.FormatInt(m.ForwardedFromChat, 10)
	}
	if m.MediaKind != kit.MediaNone {
		ev.Kind = conversation.KindMedia
		if media, err := post.NewMedia(post.MediaKind(m.MediaKind), m.MediaRef); err == nil {
			ev.Media = media
		}
		return ev
	}
	if kind, ok := commandKind(m.Text); ok {
		ev.Kind = kind
		ev.Text = ""
	}
	return ev
}

func render(rep conversation.Reply) tgui.Message {
	kb := tgui.NewInline()
	for _, row := range rep.Buttons {
		btns := make([]tele.Btn, 0, len(row))
		for _, b := range row {
			data, err := tgui.Data(CallbackPrefix, string(b.Kind), b.Payload)
			if err != nil {
				continue
			}
			btns = append(btns, tgui.Btn(b.Label, data))
		}
		if len(btns) > 0 {
			kb.Row(btns...)
		}
	}
	return tgui.HTML(rep.Text, kb)
}
