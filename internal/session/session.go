// Package session keeps the per-user post draft between conversation turns.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"postbot/internal/post"
	logx "postbot/pkg/logx"
)

// Session is the draft being assembled. Fields fill in conversation order.
type Session struct {
	Media     post.Media
	LinkText  string
	Variant   post.Variant
	UpdatedAt time.Time
}

// Complete reports whether the draft can be dispatched.
func (s Session) Complete() bool {
	return s.Media != nil && s.LinkText != "" && s.Variant != ""
}

type wireSession struct {
	MediaKind string    `json:"media_kind,omitempty"`
	MediaRef  string    `json:"media_ref,omitempty"`
	LinkText  string    `json:"link_text,omitempty"`
	Variant   string    `json:"variant,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s Session) MarshalJSON() ([]byte, error) {
	w := wireSession{LinkText: s.LinkText, Variant: string(s.Variant), UpdatedAt: s.UpdatedAt}
	if s.Media != nil {
		w.MediaKind = string(s.Media.Kind())
		w.MediaRef = s.Media.Ref()
	}
	return json.Marshal(w)
}

func (s *Session) UnmarshalJSON(b []byte) error {
	var w wireSession
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*s = Session{LinkText: w.LinkText, Variant: post.Variant(w.Variant), UpdatedAt: w.UpdatedAt}
	if w.MediaKind != "" {
		m, err := post.NewMedia(post.MediaKind(w.MediaKind), w.MediaRef)
		if err != nil {
			return err
		}
		s.Media = m
	}
	return nil
}

// Store holds at most one session per user. Last writer wins.
type Store interface {
	Get(ctx context.Context, user int64) (Session, bool, error)
	Put(ctx context.Context, user int64, s Session) error
	Delete(ctx context.Context, user int64) error
	Close() error
}

type Config struct {
	Driver string
	Redis  RedisConfig
}

// Open returns the configured store. An empty driver means "memory".
func Open(cfg Config, log logx.Logger) (Store, error) {
	switch d := strings.ToLower(strings.TrimSpace(cfg.Driver)); d {
	case "", "memory":
		return NewMemory(), nil
	case "redis":
		return OpenRedis(cfg.Redis, log)
	default:
		return nil, fmt.Errorf("unknown session driver: %s", d)
	}
}
