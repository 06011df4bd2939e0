// Package post holds the content model of a broadcast: the thumbnail media,
// the variant catalog and the HTML caption.
package post

import (
	"fmt"
	"strings"
)

type MediaKind string

const (
	KindPhoto     MediaKind = "photo"
	KindVideo     MediaKind = "video"
	KindAnimation MediaKind = "animation"
)

// Media is a thumbnail reference. It is one of Photo, Video or Animation.
type Media interface {
	Kind() MediaKind
	Ref() string
	isMedia()
}

type Photo struct{ FileID string }
type Video struct{ FileID string }
type Animation struct{ FileID string }

func (Photo) Kind() MediaKind     { return KindPhoto }
func (Video) Kind() MediaKind     { return KindVideo }
func (Animation) Kind() MediaKind { return KindAnimation }

func (m Photo) Ref() string     { return m.FileID }
func (m Video) Ref() string     { return m.FileID }
func (m Animation) Ref() string { return m.FileID }

func (Photo) isMedia()     {}
func (Video) isMedia()     {}
func (Animation) isMedia() {}

// NewMedia builds the Media for kind. The reference must be non-empty.
func NewMedia(kind MediaKind, ref string) (Media, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, fmt.Errorf("post: empty %s reference", kind)
	}
	switch MediaKind(strings.ToLower(string(kind))) {
	case KindPhoto:
		return Photo{FileID: ref}, nil
	case KindVideo:
		return Video{FileID: ref}, nil
	case KindAnimation:
		return Animation{FileID: ref}, nil
	default:
		return nil, fmt.Errorf("post: unsupported media kind %q", kind)
	}
}
