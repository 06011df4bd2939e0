package tgui

import (
	"context"
	"strings"

	tele "gopkg.in/telebot.v4"

	kit "postbot/internal/transport"
)

// Message is a rendered UI payload: text + send options.
type Message struct {
	Text string
	Opt  *kit.SendOptions

	// More are additional messages to send after the first one.
	More []string
}

// HTML builds a Message with ParseMode=HTML and previews disabled.
// kb may be nil.
func HTML(text string, kb *Inline) Message {
	opt := &kit.SendOptions{ParseMode: tele.ModeHTML, DisablePreview: true}
	if kb != nil && !kb.Empty() {
		opt.ReplyMarkupAdapter = kb.Markup()
	}
	return Message{Text: text, Opt: opt}
}

// Send sends the Message via the provided adapter.
// ReplyMarkup is only attached to the first message.
func (m Message) Send(ctx context.Context, ad kit.Adapter, to kit.ChatTarget) (kit.MessageRef, error) {
	if m.Opt == nil {
		m.Opt = &kit.SendOptions{}
	}
	ref, err := ad.SendText(ctx, to, m.Text, m.Opt)
	if err != nil {
		return ref, err
	}
	if len(m.More) == 0 {
		return ref, nil
	}
	opt2 := *m.Opt
	opt2.ReplyMarkupAdapter = nil
	for _, t := range m.More {
		if strings.TrimSpace(t) == "" {
			continue
		}
		if _, e := ad.SendText(ctx, to, t, &opt2); e != nil {
			return ref, e
		}
	}
	return ref, nil
}
