package tgui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tele "gopkg.in/telebot.v4"

	kit "postbot/internal/transport"
)

func TestDataRoundTrip(t *testing.T) {
	t.Parallel()
	tests := []struct {
		action, payload string
		want            string
	}{
		{action: "menu", want: "post:menu"},
		{action: "variant", payload: "xrated", want: "post:variant:xrated"},
		{action: "x", payload: "a:b", want: "post:x:a:b"},
	}
	for _, tt := range tests {
		got, err := Data("post", tt.action, tt.payload)
		if err != nil || got != tt.want {
			t.Fatalf("Data(%q,%q) = %q, %v", tt.action, tt.payload, got, err)
		}
		p, a, pl, ok := ParseData(got)
		if !ok || p != "post" || a != tt.action || pl != tt.payload {
			t.Fatalf("ParseData(%q) = %q %q %q %v", got, p, a, pl, ok)
		}
	}
}

func TestDataLimits(t *testing.T) {
	t.Parallel()
	if _, err := Data("post", "variant", strings.Repeat("x", 64)); !errors.Is(err, ErrCallbackDataTooLong) {
		t.Fatalf("err = %v, want ErrCallbackDataTooLong", err)
	}
	for _, bad := range []string{"", "post", ":menu", "post:"} {
		if _, _, _, ok := ParseData(bad); ok {
			t.Fatalf("ParseData(%q) should fail", bad)
		}
	}
}

func TestHTMLHelpers(t *testing.T) {
	t.Parallel()
	if got := B("a<b"); got != "<b>a&lt;b</b>" {
		t.Fatalf("B = %q", got)
	}
	if got := Code("-100"); got != "<code>-100</code>" {
		t.Fatalf("Code = %q", got)
	}
	if got := TruncRunes("héllo", 3); got != "hél…" {
		t.Fatalf("TruncRunes = %q", got)
	}
}

type recordingAdapter struct {
	kit.Adapter
	sent []string
	opts []*kit.SendOptions
}

func (r *recordingAdapter) SendText(_ context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	r.sent = append(r.sent, text)
	r.opts = append(r.opts, opt)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(r.sent)}, nil
}

func TestMessageSend(t *testing.T) {
	t.Parallel()
	kb := NewInline().Row(Btn("Go", "post:menu"))
	m := HTML("<b>hi</b>", kb)
	m.More = []string{"second", " "}

	ad := &recordingAdapter{}
	ref, err := m.Send(context.Background(), ad, kit.ChatTarget{ChatID: 5})
	if err != nil || ref.MessageID != 1 {
		t.Fatalf("Send = %+v, %v", ref, err)
	}
	if len(ad.sent) != 2 || ad.sent[1] != "second" {
		t.Fatalf("sent = %q", ad.sent)
	}
	if ad.opts[0].ParseMode != tele.ModeHTML || ad.opts[0].ReplyMarkupAdapter == nil {
		t.Fatalf("first opts = %+v", ad.opts[0])
	}
	if ad.opts[1].ReplyMarkupAdapter != nil {
		t.Fatal("markup must only go on the first message")
	}
	if HTML("x", NewInline()).Opt.ReplyMarkupAdapter != nil {
		t.Fatal("empty keyboard should not attach markup")
	}
}
