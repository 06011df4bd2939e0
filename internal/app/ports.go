package app

import (
	"context"
	"fmt"
	"strconv"

	tele "gopkg.in/telebot.v4"

	"postbot/internal/channel"
	"postbot/internal/post"
	kit "postbot/internal/transport"
)

// telegramPorts is the part of the Telegram adapter the domain services use.
type telegramPorts interface {
	kit.Adapter
	kit.MediaSender
	kit.ChatInspector
}

// chatVerifier answers channel.Verifier from what the bot sees in the chat.
type chatVerifier struct{ tg kit.ChatInspector }

func (v chatVerifier) VerifyAccess(ctx context.Context, channelID string) (channel.Access, error) {
	id, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return channel.Access{}, fmt.Errorf("%w: %v", channel.ErrInvalidChannelID, err)
	}
	ca, err := v.tg.InspectChat(ctx, id)
	if err != nil {
		return channel.Access{}, fmt.Errorf("%w: %v", channel.ErrUnreachable, err)
	}
	return channel.Access{Title: ca.Title, CanPost: canPost(ca)}, nil
}

// canPost: creators always; admins need the posting right that matches the
// chat type; plain members only in groups.
func canPost(ca kit.ChatAccess) bool {
	switch ca.Role {
	case "creator":
		return true
	case "administrator":
		if ca.Type == "channel" {
			return ca.CanPostMessages
		}
		return ca.CanSendMessages || ca.CanPostMessages
	case "member":
		return ca.Type == "group" || ca.Type == "supergroup"
	default:
		return false
	}
}

// mediaSender is the broadcast.Sender over Telegram.
type mediaSender struct{ tg kit.MediaSender }

func (s mediaSender) Send(ctx context.Context, channelID string, media post.Media, caption string) error {
	id, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return fmt.Errorf("channel id %q: %w", channelID, err)
	}
	if media == nil {
		return fmt.Errorf("send to %s: no media", channelID)
	}
	_, err = s.tg.SendMedia(ctx, kit.ChatTarget{ChatID: id}, mediaKind(media.Kind()), media.Ref(), caption,
		&kit.SendOptions{ParseMode: tele.ModeHTML})
	return err
}

func mediaKind(k post.MediaKind) kit.MediaKind {
	switch k {
	case post.KindPhoto:
		return kit.MediaPhoto
	case post.KindVideo:
		return kit.MediaVideo
	case post.KindAnimation:
		return kit.MediaAnimation
	default:
		return kit.MediaOther
	}
}

// userNotifier is delivery.Notifier over Telegram private chats.
type userNotifier struct{ tg kit.Adapter }

func (n userNotifier) NotifyUser(ctx context.Context, userID int64, text string) error {
	_, err := n.tg.SendText(ctx, kit.ChatTarget{ChatID: userID}, text,
		&kit.SendOptions{ParseMode: tele.ModeHTML, DisablePreview: true})
	return err
}

// alertSender adapts the Telegram adapter to logx.AlertFunc.
func alertSender(tg kit.Adapter) func(ctx context.Context, chatID int64, threadID int, text string) error {
	return func(ctx context.Context, chatID int64, threadID int, text string) error {
		_, err := tg.SendText(ctx, kit.ChatTarget{ChatID: chatID, ThreadID: threadID}, text,
			&kit.SendOptions{DisablePreview: true})
		return err
	}
}
