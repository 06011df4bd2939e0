package transport

import "context"

type UpdateKind string

const (
	UpdateMessage  UpdateKind = "message"
	UpdateCallback UpdateKind = "callback"
)

type Update struct {
	Kind     UpdateKind
	Message  *Message
	Callback *Callback
}

// MediaKind mirrors the Telegram attachment types the bot cares about.
// Anything else arrives as MediaOther.
type MediaKind string

const (
	MediaNone      MediaKind = ""
	MediaPhoto     MediaKind = "photo"
	MediaVideo     MediaKind = "video"
	MediaAnimation MediaKind = "animation"
	MediaOther     MediaKind = "other"
)

type Message struct {
	ID           int
	ChatID       int64
	ThreadID     int // telegram forum topic thread id (0 if none)
	FromID       int64
	FromUsername string
	Text         string
	IsGroup      bool

	MediaKind MediaKind
	MediaRef  string // file id; empty for MediaOther
	// ForwardedFromChat is the origin chat of a forwarded channel post (0 if none).
	ForwardedFromChat int64
}

type Callback struct {
	ID        string
	FromID    int64
	ChatID    int64
	ThreadID  int
	MessageID int
	Data      string
}

type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

type SendOptions struct {
	ParseMode          string
	DisablePreview     bool
	ReplyMarkupAdapter any // adapter-specific markup (Telegram: *telebot.ReplyMarkup)
}

// ChatAccess is what the bot sees about itself in a chat.
type ChatAccess struct {
	ChatID int64
	Title  string
	Type   string // "channel", "group", "supergroup", "private"
	Role   string // "creator", "administrator", "member", "left", ...

	CanPostMessages bool
	CanSendMessages bool
}

type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	EditText(ctx context.Context, ref MessageRef, text string, opt *SendOptions) error
	AnswerCallback(ctx context.Context, callbackID string, text string) error
}

// MediaSender is implemented by adapters that can post a file id with a caption.
type MediaSender interface {
	SendMedia(ctx context.Context, to ChatTarget, kind MediaKind, ref, caption string, opt *SendOptions) (MessageRef, error)
}

// ChatInspector is implemented by adapters that can look up the bot's own
// membership in a chat.
type ChatInspector interface {
	InspectChat(ctx context.Context, chatID int64) (ChatAccess, error)
}

// BotCommand represents a single bot command menu entry.
type BotCommand struct {
	Command     string
	Description string
}

// CommandMenuUpdater is an optional interface that adapters can implement
// to update platform-specific bot command menus (e.g. Telegram /menu list).
type CommandMenuUpdater interface {
	UpdateMenuCommands(ctx context.Context, cmds []BotCommand) error
}
