package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("storage: snapshot not found")
	ErrClosed   = errors.New("storage: closed")
)

// Config configures storage.
//
// Path is a directory for "file" and a database file for "sqlite".
// DSN is used by "mysql", "postgres" and "redis" (a redis:// URL).
// KeyPrefix is prepended to every snapshot key.
type Config struct {
	Driver      string
	Path        string
	DSN         string
	BusyTimeout time.Duration // sqlite only; 0 means default
	KeyPrefix   string
}

// Store loads and saves whole snapshots by key.
type Store interface {
	// Load returns ErrNotFound when nothing was ever saved under key.
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Close() error
}
