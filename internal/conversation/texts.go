package conversation

import (
	"fmt"
	"strings"
	"time"

	"postbot/internal/channel"
	"postbot/internal/delivery"
	"postbot/internal/post"
	"postbot/internal/schedule"
	"postbot/pkg/tgui"
)

var (
	btnCreate       = Button{Label: "📝 Create New Post", Kind: KindCreatePost}
	btnChannels     = Button{Label: "📺 Manage Channels", Kind: KindManageChannels}
	btnScheduled    = Button{Label: "📅 Check Scheduled Posts", Kind: KindCheckScheduled}
	btnHelp         = Button{Label: "❓ Help", Kind: KindHelp}
	btnMenu         = Button{Label: "🏠 Main Menu", Kind: KindMainMenu}
	btnAddChannel   = Button{Label: "➕ Add Channel", Kind: KindAddChannel}
	btnListChannels = Button{Label: "📄 List Channels", Kind: KindListChannels}
	btnPostNow      = Button{Label: "📤 Post Now", Kind: KindPostNow}
	btnSchedule     = Button{Label: "📅 Schedule", Kind: KindSchedule}
	btnCancel       = Button{Label: "❌ Cancel", Kind: KindCancel}
)

func rows(bs ...Button) [][]Button {
	out := make([][]Button, len(bs))
	for i, b := range bs {
		out[i] = []Button{b}
	}
	return out
}

func relabel(b Button, label string) Button {
	b.Label = label
	return b
}

func welcome() Reply {
	return Reply{
		Text:    "👋 Welcome to the Post Generator Bot!\nWhat would you like to do? 😊",
		Buttons: rows(btnCreate, btnChannels, btnScheduled, btnHelp),
	}
}

func help() Reply {
	return Reply{
		Text: tgui.B("🤖 Post Generator Bot Help").String() + "\n\n" +
			"1. " + tgui.B("Create New Post").String() + ": Start creating a new post with a thumbnail and video link.\n" +
			"2. " + tgui.B("Manage Channels").String() + ": Add or list channels where your posts will be shared.\n" +
			"3. " + tgui.B("Check Scheduled Posts").String() + ": View the status of your scheduled posts.\n" +
			"4. " + tgui.B("Help").String() + ": Get this help message.\n\n" +
			"Use the buttons below to navigate, or /cancel to abort the current step.",
		Buttons: rows(btnMenu),
	}
}

func cancelled() Reply {
	return Reply{
		Text:    "❌ " + tgui.B("Operation cancelled.").String() + " Send /start to begin again.",
		Buttons: rows(btnMenu),
	}
}

func channelMenu() Reply {
	return Reply{
		Text:    tgui.B("📺 Channel Management:").String() + "\n" + tgui.B("What would you like to do?").String() + " 🤔",
		Buttons: rows(btnAddChannel, btnListChannels, btnCreate, btnMenu),
	}
}

func nextAction() Reply {
	return Reply{
		Text:    tgui.B("What would you like to do next?").String() + " 🤔",
		Buttons: rows(relabel(btnAddChannel, "➕ Add Another Channel"), btnListChannels, btnMenu),
	}
}

func say(text string, buttons ...Button) Reply {
	r := Reply{Text: text}
	if len(buttons) > 0 {
		r.Buttons = rows(buttons...)
	}
	return r
}

const (
	txtAskThumbnail  = "🖼️ <b>Please send me a thumbnail (image, GIF, or video).</b>"
	txtBadThumbnail  = "⚠️ <b>Please send a photo, video, or GIF.</b>"
	txtAskLink       = "👍 <b>Great! Now please send me the video link.</b> 🔗"
	txtLinkAsText    = "⚠️ <b>Please send the video link as text.</b>"
	txtAskVariant    = "<b>Please select which bot you want to use for this post:</b> 🤖"
	txtUnknownOption = "⚠️ <b>That option is no longer available.</b> Please pick one of the buttons."
	txtAskDispatch   = "<b>Would you like to post now or schedule the post?</b> ⏰"
	txtExpired       = "⌛ <b>Your session has expired.</b> Please start again with /start."
	txtFailed        = "❌ <b>Something went wrong.</b> Please try again."
	txtNoChannels    = "❌ <b>You haven't added any channels yet!</b> 😞\nPlease add channels first using the 'Manage Channels' option. 📺"
	txtAskChannel    = "📢 <b>Please forward a message from the channel or send the channel ID.</b>\nMake sure the bot is an admin in the channel! 🤖"
	txtBadChannel    = "⚠️ <b>Please send a valid channel ID or forward a message from the channel.</b>\nMake sure the bot is an admin in the channel! 🤖"
	txtNoPermission  = "⚠️ <b>I don't have permission to post messages in this channel.</b>\nPlease make sure I am an admin with posting rights! 🔑"
	txtUnreachable   = "❌ <b>I couldn't access this channel. Please make sure:</b>\n" +
		"1. The channel ID is correct ✔️\n" +
		"2. I am added as an admin in the channel 👑\n" +
		"3. I have permission to post messages 📝"
	txtAlreadyAdded     = "ℹ️ <b>This channel is already in your list!</b>"
	txtBadTime          = "⚠️ <b>Invalid time format!</b> 🕐\nPlease provide the time in HH:MM format (e.g., <code>14:30</code>)"
	txtAlreadyScheduled = "⚠️ <b>You already have a post scheduled for that time.</b>\nPlease send a different time (HH:MM)."
)

func askVariant(cat *post.Catalog) Reply {
	var bs []Button
	for _, v := range cat.All() {
		bs = append(bs, Button{Label: v.Label, Kind: KindVariant, Payload: string(v.Name)})
	}
	bs = append(bs, btnMenu)
	return say(txtAskVariant, bs...)
}

func askDispatch() Reply { return say(txtAskDispatch, btnPostNow, btnSchedule, btnMenu) }

func askTime(zone string) Reply {
	return say("⏰ <b>Please provide the time to schedule the post (HH:MM format, "+tgui.Esc(zone).String()+").</b>\n"+
		"Example: <code>14:30</code> for 2:30 PM", btnCancel)
}

func channelAdded(title string) Reply {
	return say("✅ <b>Channel '" + tgui.Esc(title).String() + "' added successfully!</b> 🎉\n" +
		"You can now create posts and they will be automatically shared to this channel.")
}

func postReport(rep delivery.Report) Reply {
	text := headline(rep)
	if bd := rep.Breakdown(); bd != "" {
		text += "\n\n" + bd
	}
	return say(text,
		relabel(btnCreate, "📝 Create Another Post"), btnMenu)
}

func headline(rep delivery.Report) string {
	icon := "✅"
	switch {
	case rep.OK == 0:
		icon = "❌"
	case rep.OK < rep.Total:
		icon = "⚠️"
	}
	return fmt.Sprintf("%s Posted to %d/%d channels", icon, rep.OK, rep.Total)
}

func scheduledOK(at time.Time, zone string) []Reply {
	return []Reply{
		say("✅ <b>Post successfully scheduled!</b> 🎉\n\n" +
			"📅 <b>Scheduled for:</b> " + at.Format("2006-01-02") + "\n" +
			"⏰ <b>Time:</b> " + at.Format("15:04") + " " + tgui.Esc(zone).String()),
		say("<b>Would you like to schedule another post?</b> 🤔",
			relabel(btnCreate, "📝 Schedule Another Post"),
			relabel(btnScheduled, "📊 View All Scheduled Posts"),
			btnMenu),
	}
}

func channelList(entries []channel.Entry) []Reply {
	if len(entries) == 0 {
		return []Reply{
			say("📭 <b>You haven't added any channels yet!</b> 😞\n" +
				"Use the 'Add Channel' option to add channels where you want your posts to appear. ➕"),
			channelNext(),
		}
	}
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		id := tgui.Code(e.ChannelID).String()
		if e.Err != nil {
			parts = append(parts, "❌ <b>Inaccessible Channel</b>\n   Channel ID: "+id+"\n   Status: Bot might have been removed")
			continue
		}
		status := "✅ Active"
		if !e.CanPost {
			status = "⚠️ No Posting Permission"
		}
		parts = append(parts, "📺 "+tgui.B(e.Title).String()+"\n   Channel ID: "+id+"\n   Status: "+status)
	}
	text := "📄 <b>Your Channels:</b>\n\n" + strings.Join(parts, "\n\n") +
		"\n\n✨ <b>To remove a channel:</b>\n" +
		"1. Use /start to restart\n" +
		"2. Choose 'Manage Channels'\n" +
		"3. Add only the channels you want to keep"
	return []Reply{say(text), channelNext()}
}

func channelNext() Reply {
	return say(tgui.B("What would you like to do next?").String()+" 🤔", btnAddChannel, btnCreate, btnMenu)
}

func scheduledListing(l schedule.Listing, zone string) Reply {
	var b strings.Builder
	b.WriteString("<b>📊 Scheduled Posts Status</b>\n\n")
	if len(l.Posted) == 0 && len(l.Pending) == 0 {
		b.WriteString("🚫 <b>No posts scheduled at the moment!</b> 😞\n\n<b>Would you like to schedule a post?</b> 😊")
	}
	stamp := func(t time.Time) string { return t.Format("2006-01-02 15:04") + " " + tgui.Esc(zone).String() }
	if len(l.Posted) > 0 {
		b.WriteString("<b>Recently Posted:</b>\n")
		for _, p := range l.Posted {
			b.WriteString("• " + p.Status.String() + "\n  📅 " + stamp(p.FireAt) + "\n")
		}
		b.WriteString(strings.Repeat("➖", 15) + "\n")
	}
	if len(l.Pending) > 0 {
		b.WriteString("\n<b>Pending Posts:</b>\n")
		for _, p := range l.Pending {
			b.WriteString("• ⏳ Scheduled\n  📅 " + stamp(p.FireAt) + "\n")
		}
	}
	return say(strings.TrimRight(b.String(), "\n"), relabel(btnCreate, "📝 Schedule New Post"), btnMenu)
}
