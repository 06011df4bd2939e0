package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	"postbot/internal/channel"
	"postbot/internal/config"
	"postbot/internal/post"
	kit "postbot/internal/transport"
)

type fakeTelegram struct {
	kit.Adapter

	access  map[int64]kit.ChatAccess
	sentTo  []kit.ChatTarget
	kinds   []kit.MediaKind
	texts   []string
	options []*kit.SendOptions
}

func (f *fakeTelegram) InspectChat(_ context.Context, id int64) (kit.ChatAccess, error) {
	ca, ok := f.access[id]
	if !ok {
		return kit.ChatAccess{}, errors.New("chat not found")
	}
	return ca, nil
}

func (f *fakeTelegram) SendMedia(_ context.Context, to kit.ChatTarget, kind kit.MediaKind, ref, caption string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.sentTo = append(f.sentTo, to)
	f.kinds = append(f.kinds, kind)
	f.texts = append(f.texts, caption)
	f.options = append(f.options, opt)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: 1}, nil
}

func (f *fakeTelegram) SendText(_ context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.sentTo = append(f.sentTo, to)
	f.texts = append(f.texts, text)
	f.options = append(f.options, opt)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: 1}, nil
}

func TestCanPost(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   kit.ChatAccess
		want bool
	}{
		{"creator", kit.ChatAccess{Type: "channel", Role: "creator"}, true},
		{"channel admin with post right", kit.ChatAccess{Type: "channel", Role: "administrator", CanPostMessages: true}, true},
		{"channel admin without post right", kit.ChatAccess{Type: "channel", Role: "administrator", CanSendMessages: true}, false},
		{"group admin", kit.ChatAccess{Type: "supergroup", Role: "administrator", CanSendMessages: true}, true},
		{"group member", kit.ChatAccess{Type: "group", Role: "member"}, true},
		{"channel member", kit.ChatAccess{Type: "channel", Role: "member"}, false},
		{"left", kit.ChatAccess{Type: "channel", Role: "left"}, false},
		{"kicked", kit.ChatAccess{Type: "group", Role: "kicked"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := canPost(tt.in); got != tt.want {
				t.Fatalf("canPost(%+v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestChatVerifier(t *testing.T) {
	t.Parallel()
	tg := &fakeTelegram{access: map[int64]kit.ChatAccess{
		-1001: {ChatID: -1001, Title: "News", Type: "channel", Role: "administrator", CanPostMessages: true},
		-1002: {ChatID: -1002, Title: "Quiet", Type: "channel", Role: "member"},
	}}
	v := chatVerifier{tg: tg}
	ctx := context.Background()

	acc, err := v.VerifyAccess(ctx, "-1001")
	if err != nil || acc.Title != "News" || !acc.CanPost {
		t.Fatalf("VerifyAccess(-1001) = %+v, %v", acc, err)
	}
	if acc, err := v.VerifyAccess(ctx, "-1002"); err != nil || acc.CanPost {
		t.Fatalf("VerifyAccess(-1002) = %+v, %v", acc, err)
	}
	if _, err := v.VerifyAccess(ctx, "-1009"); !errors.Is(err, channel.ErrUnreachable) {
		t.Fatalf("missing chat err = %v", err)
	}
	if _, err := v.VerifyAccess(ctx, "@name"); !errors.Is(err, channel.ErrInvalidChannelID) {
		t.Fatalf("non-numeric err = %v", err)
	}
}

func TestMediaSender(t *testing.T) {
	t.Parallel()
	tg := &fakeTelegram{}
	s := mediaSender{tg: tg}
	ctx := context.Background()

	media := []post.Media{post.Photo{FileID: "p"}, post.Video{FileID: "v"}, post.Animation{FileID: "a"}}
	for _, m := range media {
		if err := s.Send(ctx, "-1001", m, "<b>cap</b>"); err != nil {
			t.Fatalf("Send(%T): %v", m, err)
		}
	}
	want := []kit.MediaKind{kit.MediaPhoto, kit.MediaVideo, kit.MediaAnimation}
	for i, k := range want {
		if tg.kinds[i] != k || tg.sentTo[i].ChatID != -1001 || tg.options[i].ParseMode != tele.ModeHTML {
			t.Fatalf("send %d: kind=%q to=%+v opt=%+v", i, tg.kinds[i], tg.sentTo[i], tg.options[i])
		}
	}
	if err := s.Send(ctx, "news", media[0], "x"); err == nil {
		t.Fatal("non-numeric channel id should fail")
	}
	if err := s.Send(ctx, "-1001", nil, "x"); err == nil {
		t.Fatal("nil media should fail")
	}
}

func TestUserNotifierAndAlerts(t *testing.T) {
	t.Parallel()
	tg := &fakeTelegram{}
	if err := (userNotifier{tg: tg}).NotifyUser(context.Background(), 42, "<b>done</b>"); err != nil {
		t.Fatal(err)
	}
	if tg.sentTo[0].ChatID != 42 || tg.options[0].ParseMode != tele.ModeHTML || !tg.options[0].DisablePreview {
		t.Fatalf("notify = %+v %+v", tg.sentTo[0], tg.options[0])
	}

	if err := alertSender(tg)(context.Background(), -100, 7, "[WARN] x<y"); err != nil {
		t.Fatal(err)
	}
	if got := tg.sentTo[1]; got.ChatID != -100 || got.ThreadID != 7 {
		t.Fatalf("alert target = %+v", got)
	}
	if tg.options[1].ParseMode != "" {
		t.Fatalf("alerts are plain text, got parse mode %q", tg.options[1].ParseMode)
	}
}

func TestMappingDefaults(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{Telegram: config.TelegramConfig{Token: "T", GroupLog: " -100123 "}}

	ec, err := mapTaskEngineConfig(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !ec.Enabled || ec.Workers != 2 || ec.QueueSize != 256 || ec.HistorySize != 200 {
		t.Fatalf("engine = %+v", ec)
	}
	if bc := mapBroadcastConfig(cfg); bc.SendTimeout != 15*time.Second {
		t.Fatalf("broadcast = %+v", bc)
	}
	if oc := mapOpsConfig(cfg); oc.ReadTimeout != 10*time.Second || oc.WriteTimeout != 0 {
		t.Fatalf("ops = %+v", oc)
	}
	if sc := mapSchedulerConfig(cfg); !sc.Enabled {
		t.Fatal("scheduler should default to enabled")
	}
	if lc := mapLogConfig(cfg); lc.Alert.ChatID != -100123 {
		t.Fatalf("alert chat = %d", lc.Alert.ChatID)
	}
	if got := reconcileSpec(cfg); got != defaultReconcileEvery {
		t.Fatalf("reconcile = %q", got)
	}
	cat, err := buildCatalog(cfg)
	if err != nil || len(cat.All()) != len(post.DefaultVariants()) {
		t.Fatalf("catalog = %v, %v", cat, err)
	}
}

func TestValidateMapped(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		cfg  config.Config
		want string
	}{
		{"ok", config.Config{}, ""},
		{"bad reconcile", config.Config{Scheduler: config.SchedulerConfig{ReconcileEvery: "sometimes"}}, "reconcile_every"},
		{"variant without link", config.Config{Post: config.PostConfig{Variants: []config.VariantConfig{{Name: "x"}}}}, "post.variants"},
		{"bad engine timeout", config.Config{TaskEngine: config.TaskEngineConfig{DefaultTimeout: "later"}}, "task_engine.default_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateMapped(&tt.cfg)
			if tt.want == "" {
				if err != nil {
					t.Fatalf("validateMapped = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("validateMapped = %v, want %q", err, tt.want)
			}
		})
	}
}
