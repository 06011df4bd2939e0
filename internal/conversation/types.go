// Package conversation is the per-user dialog that assembles a post and hands
// it to delivery. It knows nothing about Telegram: events come in, replies go
// out.
package conversation

import (
	"postbot/internal/post"
)

type State int

const (
	Idle State = iota
	AwaitingThumbnail
	AwaitingLink
	AwaitingVariant
	AwaitingDispatchChoice
	AwaitingScheduleTime
	AddingChannel
	AwaitingNextAction
)

var stateNames = [...]string{
	Idle:                   "idle",
	AwaitingThumbnail:      "awaiting_thumbnail",
	AwaitingLink:           "awaiting_link",
	AwaitingVariant:        "awaiting_variant",
	AwaitingDispatchChoice: "awaiting_dispatch_choice",
	AwaitingScheduleTime:   "awaiting_schedule_time",
	AddingChannel:          "adding_channel",
	AwaitingNextAction:     "awaiting_next_action",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Kind is both the event type and the callback action of the button that
// produces it.
type Kind string

const (
	KindStart          Kind = "start"
	KindMainMenu       Kind = "menu"
	KindHelp           Kind = "help"
	KindCreatePost     Kind = "create"
	KindManageChannels Kind = "channels"
	KindAddChannel     Kind = "add_channel"
	KindListChannels   Kind = "list_channels"
	KindCheckScheduled Kind = "scheduled"
	KindVariant        Kind = "variant"
	KindPostNow        Kind = "post_now"
	KindSchedule       Kind = "schedule"
	KindCancel         Kind = "cancel"

	// Produced by messages, never by buttons.
	KindMedia Kind = "media"
	KindText  Kind = "text"
)

var buttonKinds = map[Kind]bool{
	KindStart: true, KindMainMenu: true, KindHelp: true, KindCreatePost: true,
	KindManageChannels: true, KindAddChannel: true, KindListChannels: true,
	KindCheckScheduled: true, KindVariant: true, KindPostNow: true,
	KindSchedule: true, KindCancel: true,
}

// ParseKind maps a callback action back to an event kind.
func ParseKind(action string) (Kind, bool) {
	k := Kind(action)
	return k, buttonKinds[k]
}

// Event is one user input.
type Event struct {
	User int64
	Kind Kind

	Text string
	// Media is nil for KindMedia when the attachment isn't a photo, video or
	// animation.
	Media post.Media
	// ForwardedFrom is the origin chat id of a forwarded message, if any.
	ForwardedFrom string
	// Payload carries the button argument, e.g. the variant name.
	Payload string
}

type Button struct {
	Label   string
	Kind    Kind
	Payload string
}

// Reply is one outbound HTML message.
type Reply struct {
	Text    string
	Buttons [][]Button
}
