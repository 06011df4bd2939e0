package adapter

import (
	"strings"
	"testing"

	tele "gopkg.in/telebot.v4"

	kit "postbot/internal/transport"
)

func TestSplitTelegramText(t *testing.T) {
	t.Parallel()

	if got := splitTelegramText("short", 10, ""); len(got) != 1 || got[0] != "short" {
		t.Fatalf("short text = %q", got)
	}

	long := strings.Repeat("a", 25)
	got := splitTelegramText(long, 10, "")
	if len(got) != 3 || strings.Join(got, "") != long {
		t.Fatalf("plain split = %q", got)
	}

	lines := strings.Repeat("x", 6) + "\n" + strings.Repeat("y", 6)
	got = splitTelegramText(lines, 10, "")
	if len(got) != 2 || got[0] != "xxxxxx" || got[1] != "yyyyyy" {
		t.Fatalf("newline split = %q", got)
	}

	html := "abcdefgh<b>bold</b>"
	got = splitTelegramText(html, 10, "HTML")
	if got[0] != "abcdefgh" || !strings.HasPrefix(got[1], "<b>") {
		t.Fatalf("html split = %q", got)
	}
}

func TestMessageFrom(t *testing.T) {
	t.Parallel()
	user := &tele.User{ID: 7, Username: "neo"}

	tests := []struct {
		name      string
		in        *tele.Message
		kind      kit.MediaKind
		ref       string
		text      string
		forwarded int64
	}{
		{
			name: "text",
			in:   &tele.Message{ID: 1, Sender: user, Chat: &tele.Chat{ID: 7, Type: tele.ChatPrivate}, Text: "hi"},
			text: "hi",
		},
		{
			name: "photo with caption",
			in:   &tele.Message{Sender: user, Chat: &tele.Chat{ID: 7}, Photo: &tele.Photo{File: tele.File{FileID: "p1"}}, Caption: "c"},
			kind: kit.MediaPhoto, ref: "p1", text: "c",
		},
		{
			name: "animation wins over document",
			in: &tele.Message{Sender: user, Chat: &tele.Chat{ID: 7},
				Animation: &tele.Animation{File: tele.File{FileID: "a1"}},
				Document:  &tele.Document{File: tele.File{FileID: "d1"}}},
			kind: kit.MediaAnimation, ref: "a1",
		},
		{
			name: "sticker is other",
			in:   &tele.Message{Sender: user, Chat: &tele.Chat{ID: 7}, Sticker: &tele.Sticker{File: tele.File{FileID: "s"}}},
			kind: kit.MediaOther,
		},
		{
			name: "forwarded channel post",
			in: &tele.Message{Sender: user, Chat: &tele.Chat{ID: 7}, Text: "fwd",
				Origin: &tele.MessageOrigin{Type: "channel", Chat: &tele.Chat{ID: -1001}}},
			text: "fwd", forwarded: -1001,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := messageFrom(tt.in)
			if got == nil {
				t.Fatal("message dropped")
			}
			if got.FromID != 7 || got.MediaKind != tt.kind || got.MediaRef != tt.ref || got.Text != tt.text || got.ForwardedFromChat != tt.forwarded {
				t.Fatalf("messageFrom = %+v", got)
			}
		})
	}

	if messageFrom(&tele.Message{Chat: &tele.Chat{ID: -100}}) != nil {
		t.Fatal("message without sender should be dropped")
	}
}

func TestAccessOf(t *testing.T) {
	t.Parallel()
	chat := &tele.Chat{ID: -100, Title: "News", Type: tele.ChatChannel}
	member := &tele.ChatMember{Role: tele.Administrator}
	member.CanPostMessages = true

	got := accessOf(chat, member)
	if got.Title != "News" || got.Type != "channel" || got.Role != "administrator" || !got.CanPostMessages {
		t.Fatalf("accessOf = %+v", got)
	}
	if got := accessOf(&tele.Chat{ID: 1, Username: "handle"}, nil); got.Title != "handle" || got.Role != "" {
		t.Fatalf("accessOf(no member) = %+v", got)
	}
}

func TestSendable(t *testing.T) {
	t.Parallel()
	what, err := sendable(kit.MediaVideo, "v1", "cap")
	if err != nil {
		t.Fatalf("sendable: %v", err)
	}
	v, ok := what.(*tele.Video)
	if !ok || v.FileID != "v1" || v.Caption != "cap" {
		t.Fatalf("sendable = %#v", what)
	}
	if _, err := sendable(kit.MediaOther, "x", ""); err == nil {
		t.Fatal("other media should be rejected")
	}
}

func TestMenuPayload(t *testing.T) {
	t.Parallel()
	cmds := menuPayload([]kit.BotCommand{{Command: "start"}, {Command: ""}, {Command: "help", Description: "show help"}})
	if len(cmds) != 2 || cmds[0].Description != "start" || cmds[1].Description != "show help" {
		t.Fatalf("menuPayload = %+v", cmds)
	}
	if menuHash(cmds) == menuHash(cmds[:1]) {
		t.Fatal("hash should change with the command list")
	}
}
