package post

import (
	"strings"

	"postbot/pkg/tgui"
)

const DefaultFooter = "Made by - @Neonghost_Network 🌟"

const (
	lineTop    = "══════⊹⊱≼≽⊰⊹══════"
	lineMiddle = "◃───────────▹"
	lineBottom = "⫘⫘⫘⫘⫘⫘⫘⫘⫘⫘"
)

// Content is the user-supplied part of a post.
type Content struct {
	Media    Media
	LinkText string
	Variant  Variant
}

// RenderCaption builds the HTML caption sent along with the thumbnail.
// An empty footer falls back to DefaultFooter.
func RenderCaption(linkText, tutorialLink, footer string) string {
	if strings.TrimSpace(footer) == "" {
		footer = DefaultFooter
	}
	var b strings.Builder
	b.WriteString(lineTop + "\n\n")
	b.WriteString(tgui.B("🎬 VIDEO LINK:").String() + "\n")
	b.WriteString(tgui.I(linkText).String() + "\n\n")
	b.WriteString(lineMiddle + "\n\n")
	b.WriteString(tgui.B("📥 HOW TO DOWNLOAD AND WATCH VIDEO:").String() + "\n")
	b.WriteString(tgui.I(tutorialLink).String() + "\n\n")
	b.WriteString(lineBottom + "\n\n")
	b.WriteString(tgui.B(footer).String())
	return b.String()
}
