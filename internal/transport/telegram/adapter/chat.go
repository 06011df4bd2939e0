package adapter

import (
	"context"
	"fmt"

	tele "gopkg.in/telebot.v4"

	kit "postbot/internal/transport"
)

// InspectChat resolves the chat and the bot's own membership in it.
func (a *Adapter) InspectChat(ctx context.Context, chatID int64) (kit.ChatAccess, error) {
	if err := ctx.Err(); err != nil {
		return kit.ChatAccess{}, err
	}
	chat, err := a.bot.ChatByID(chatID)
	if err != nil {
		return kit.ChatAccess{}, fmt.Errorf("get chat %d: %w", chatID, err)
	}
	if err := ctx.Err(); err != nil {
		return kit.ChatAccess{}, err
	}
	member, err := a.bot.ChatMemberOf(chat, a.bot.Me)
	if err != nil {
		return kit.ChatAccess{}, fmt.Errorf("get bot membership in %d: %w", chatID, err)
	}
	return accessOf(chat, member), nil
}

func accessOf(chat *tele.Chat, member *tele.ChatMember) kit.ChatAccess {
	out := kit.ChatAccess{
		ChatID: chat.ID,
		Title:  chat.Title,
		Type:   string(chat.Type),
	}
	if out.Title == "" {
		out.Title = chat.Username
	}
	if member != nil {
		out.Role = string(member.Role)
		out.CanPostMessages = member.CanPostMessages
		out.CanSendMessages = member.CanSendMessages
	}
	return out
}
