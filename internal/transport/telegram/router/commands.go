package router

import (
	"strings"

	"postbot/internal/conversation"
	kit "postbot/internal/transport"
)

type command struct {
	Name        string
	Description string
	Kind        conversation.Kind
}

var commands = []command{
	{Name: "start", Description: "Open the main menu", Kind: conversation.KindStart},
	{Name: "help", Description: "How to use the bot", Kind: conversation.KindHelp},
	{Name: "cancel", Description: "Cancel the current operation", Kind: conversation.KindCancel},
}

func menuCommands() []kit.BotCommand {
	out := make([]kit.BotCommand, 0, len(commands))
	for _, c := range commands {
		out = append(out, kit.BotCommand{Command: c.Name, Description: c.Description})
	}
	return out
}

// commandKind maps "/start", "/start@postbot arg" and friends to an event
// kind. Unknown commands are not commands.
func commandKind(text string) (conversation.Kind, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", false
	}
	word := strings.TrimPrefix(strings.Fields(text)[0], "/")
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	word = strings.ToLower(word)
	for _, c := range commands {
		if c.Name == word {
			return c.Kind, true
		}
	}
	return "", false
}
