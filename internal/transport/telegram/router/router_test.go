package router

import (
	"context"
	"sync"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	"postbot/internal/conversation"
	"postbot/internal/post"
	kit "postbot/internal/transport"
	logx "postbot/pkg/logx"
)

type fakeAdapter struct {
	kit.Adapter

	mu      sync.Mutex
	texts   []string
	markups []any
	answers []string
}

func (f *fakeAdapter) SendText(_ context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	var m any
	if opt != nil {
		m = opt.ReplyMarkupAdapter
	}
	f.markups = append(f.markups, m)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.texts)}, nil
}

func (f *fakeAdapter) AnswerCallback(_ context.Context, _ string, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, text)
	return nil
}

func (f *fakeAdapter) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.texts...)
}

type fakeConversation struct {
	events chan conversation.Event
	block  chan struct{}
}

func (f *fakeConversation) Handle(_ context.Context, ev conversation.Event) []conversation.Reply {
	f.events <- ev
	if f.block != nil {
		<-f.block
	}
	return []conversation.Reply{{
		Text:    "echo " + string(ev.Kind),
		Buttons: [][]conversation.Button{{{Label: "Menu", Kind: conversation.KindMainMenu}}},
	}}
}

func TestMessageEvent(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		in    kit.Message
		kind  conversation.Kind
		text  string
		media post.Media
		fwd   string
	}{
		{name: "text", in: kit.Message{FromID: 1, Text: "http://x/1"}, kind: conversation.KindText, text: "http://x/1"},
		{name: "start", in: kit.Message{FromID: 1, Text: "/start"}, kind: conversation.KindStart},
		{name: "help with bot name", in: kit.Message{FromID: 1, Text: "/help@postbot"}, kind: conversation.KindHelp},
		{name: "unknown command is text", in: kit.Message{FromID: 1, Text: "/nope"}, kind: conversation.KindText, text: "/nope"},
		{name: "photo", in: kit.Message{FromID: 1, MediaKind: kit.MediaPhoto, MediaRef: "p1"}, kind: conversation.KindMedia, media: post.Photo{FileID: "p1"}},
		{name: "unsupported media", in: kit.Message{FromID: 1, MediaKind: kit.MediaOther}, kind: conversation.KindMedia},
		{name: "forward", in: kit.Message{FromID: 1, Text: "x", ForwardedFromChat: -1001}, kind: conversation.KindText, text: "x", fwd: "-1001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := messageEvent(&tt.in)
			if ev.User != 1 || ev.Kind != tt.kind || ev.Text != tt.text || ev.Media != tt.media || ev.ForwardedFrom != tt.fwd {
				t.Fatalf("messageEvent = %+v", ev)
			}
		})
	}
}

func TestToRequestCallbacks(t *testing.T) {
	t.Parallel()
	cb := func(data string) kit.Update {
		return kit.Update{Kind: kit.UpdateCallback, Callback: &kit.Callback{ID: "c", FromID: 9, ChatID: 9, Data: data}}
	}

	req, ok := toRequest(cb("post:variant:xrated"))
	if !ok || req.Event.Kind != conversation.KindVariant || req.Event.Payload != "xrated" || req.CallbackID != "c" {
		t.Fatalf("toRequest = %+v, %v", req, ok)
	}
	for _, data := range []string{"other:menu", "post:bogus", "garbage"} {
		if _, ok := toRequest(cb(data)); ok {
			t.Fatalf("toRequest(%q) should be ignored", data)
		}
	}
	group := kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{FromID: 1, ChatID: -5, IsGroup: true, Text: "/start"}}
	if _, ok := toRequest(group); ok {
		t.Fatal("group messages should be ignored")
	}
}

func TestWorkerForIsStable(t *testing.T) {
	t.Parallel()
	for _, u := range []int64{1, 42, -7, 1 << 40} {
		w := workerFor(u, 4)
		if w < 0 || w >= 4 || workerFor(u, 4) != w {
			t.Fatalf("workerFor(%d) = %d", u, w)
		}
	}
}

func TestRender(t *testing.T) {
	t.Parallel()
	msg := render(conversation.Reply{
		Text: "<b>hi</b>",
		Buttons: [][]conversation.Button{
			{{Label: "A", Kind: conversation.KindVariant, Payload: "xrated"}, {Label: "B", Kind: conversation.KindCancel}},
			{{Label: "Menu", Kind: conversation.KindMainMenu}},
		},
	})
	if msg.Opt.ParseMode != tele.ModeHTML {
		t.Fatalf("parse mode = %q", msg.Opt.ParseMode)
	}
	rm, ok := msg.Opt.ReplyMarkupAdapter.(*tele.ReplyMarkup)
	if !ok || len(rm.InlineKeyboard) != 2 || len(rm.InlineKeyboard[0]) != 2 {
		t.Fatalf("markup = %#v", msg.Opt.ReplyMarkupAdapter)
	}
	if got := rm.InlineKeyboard[0][0].Data; got != "post:variant:xrated" {
		t.Fatalf("callback data = %q", got)
	}
	if plain := render(conversation.Reply{Text: "x"}); plain.Opt.ReplyMarkupAdapter != nil {
		t.Fatal("reply without buttons should carry no markup")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRunDispatchesAndReplies(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	conv := &fakeConversation{events: make(chan conversation.Event, 4)}
	r := New(Config{Workers: 2}, ad, conv, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan kit.Update, 4)
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, updates) }()

	updates <- kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{FromID: 3, ChatID: 3, Text: "/start"}}
	updates <- kit.Update{Kind: kit.UpdateCallback, Callback: &kit.Callback{ID: "cb1", FromID: 3, ChatID: 3, Data: "post:create"}}

	for _, want := range []conversation.Kind{conversation.KindStart, conversation.KindCreatePost} {
		select {
		case ev := <-conv.events:
			if ev.Kind != want || ev.User != 3 {
				t.Fatalf("event = %+v, want %s", ev, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("no %s event", want)
		}
	}
	waitFor(t, func() bool { return len(ad.sent()) == 2 })
	ad.mu.Lock()
	if ad.texts[0] != "echo start" || ad.markups[0] == nil || len(ad.answers) != 1 || ad.answers[0] != "" {
		t.Fatalf("texts=%q answers=%q", ad.texts, ad.answers)
	}
	ad.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestRunRejectsStrangersAndOverflow(t *testing.T) {
	t.Parallel()
	ad := &fakeAdapter{}
	conv := &fakeConversation{events: make(chan conversation.Event, 4), block: make(chan struct{})}
	r := New(Config{Workers: 1, QueueSize: 1, Owners: []int64{3}}, ad, conv, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates := make(chan kit.Update)
	go func() { _ = r.Run(ctx, updates) }()

	msg := func(from int64) kit.Update {
		return kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{FromID: from, ChatID: from, Text: "hi"}}
	}

	updates <- msg(99)
	waitFor(t, func() bool { s := ad.sent(); return len(s) == 1 && s[0] == textUnauthorized })

	// First one occupies the worker, second fills the queue, third overflows.
	updates <- msg(3)
	<-conv.events
	updates <- msg(3)
	updates <- msg(3)
	waitFor(t, func() bool { s := ad.sent(); return len(s) == 2 && s[1] == textBusy })

	close(conv.block)
}
