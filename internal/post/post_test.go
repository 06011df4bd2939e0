package post

import (
	"strings"
	"testing"
)

func TestNewMedia(t *testing.T) {
	t.Parallel()
	tests := []struct {
		kind    MediaKind
		want    Media
		wantErr bool
	}{
		{kind: KindPhoto, want: Photo{FileID: "f1"}},
		{kind: KindVideo, want: Video{FileID: "f1"}},
		{kind: "ANIMATION", want: Animation{FileID: "f1"}},
		{kind: "sticker", wantErr: true},
	}
	for _, tt := range tests {
		got, err := NewMedia(tt.kind, " f1 ")
		if tt.wantErr {
			if err == nil {
				t.Errorf("NewMedia(%q) expected error", tt.kind)
			}
			continue
		}
		if err != nil {
			t.Fatalf("NewMedia(%q): %v", tt.kind, err)
		}
		if got != tt.want {
			t.Errorf("NewMedia(%q) = %#v, want %#v", tt.kind, got, tt.want)
		}
	}
	if _, err := NewMedia(KindPhoto, ""); err == nil {
		t.Fatal("expected error for empty ref")
	}
}

func TestCatalogDefaults(t *testing.T) {
	t.Parallel()
	c, err := NewCatalog(nil)
	if err != nil {
		t.Fatal(err)
	}
	x, ok := c.Lookup(VariantXRated)
	if !ok || x.TutorialLink != "https://t.me/TutorialsNG/11" {
		t.Fatalf("xrated = %+v, %v", x, ok)
	}
	n, ok := c.Lookup(VariantNightRider)
	if !ok || n.TutorialLink != "https://t.me/TutorialsNG/10" {
		t.Fatalf("nightrider = %+v, %v", n, ok)
	}
	if _, ok := c.Lookup("other"); ok {
		t.Fatal("unknown variant must be rejected")
	}
	if len(c.All()) != 2 || c.All()[0].Name != VariantXRated {
		t.Fatalf("All = %+v", c.All())
	}
}

func TestCatalogValidation(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		items []VariantInfo
	}{
		{name: "empty name", items: []VariantInfo{{TutorialLink: "x"}}},
		{name: "no link", items: []VariantInfo{{Name: "a"}}},
		{name: "colon", items: []VariantInfo{{Name: "a:b", TutorialLink: "x"}}},
		{name: "duplicate", items: []VariantInfo{{Name: "a", TutorialLink: "x"}, {Name: "A", TutorialLink: "y"}}},
	}
	for _, tt := range tests {
		if _, err := NewCatalog(tt.items); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestRenderCaption(t *testing.T) {
	t.Parallel()
	got := RenderCaption("http://x/1?a=1&b=<2>", "https://t.me/TutorialsNG/11", "")
	want := "══════⊹⊱≼≽⊰⊹══════\n\n" +
		"<b>🎬 VIDEO LINK:</b>\n" +
		"<i>http://x/1?a=1&amp;b=&lt;2&gt;</i>\n\n" +
		"◃───────────▹\n\n" +
		"<b>📥 HOW TO DOWNLOAD AND WATCH VIDEO:</b>\n" +
		"<i>https://t.me/TutorialsNG/11</i>\n\n" +
		"⫘⫘⫘⫘⫘⫘⫘⫘⫘⫘\n\n" +
		"<b>Made by - @Neonghost_Network 🌟</b>"
	if got != want {
		t.Fatalf("caption mismatch:\n%s\nwant:\n%s", got, want)
	}
	if c := RenderCaption("l", "t", "by me"); !strings.HasSuffix(c, "\n<b>by me</b>") {
		t.Fatalf("custom footer not applied: %q", c)
	}
}
