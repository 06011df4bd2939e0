package storage

import (
	"context"
	"errors"
	"strings"

	logx "postbot/pkg/logx"
)

// Open initializes the configured store. An empty driver means "file".
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("comp", "storage"), logx.String("driver", driver))

	var (
		st  Store
		err error
	)
	switch driver {
	case "memory":
		st = NewMemory()
	case "", "file":
		st, err = openFile(cfg)
	case "sqlite", "sqlite3":
		st, err = openSQLite(cfg, log)
	case "mysql":
		st, err = openMySQL(cfg, log)
	case "postgres", "postgresql", "pgx":
		st, err = openPostgres(cfg, log)
	case "redis":
		st, err = openRedis(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
	if err != nil {
		return nil, err
	}
	if p := strings.TrimSpace(cfg.KeyPrefix); p != "" {
		st = &prefixed{Store: st, prefix: p}
	}
	log.Info("storage opened")
	return st, nil
}

type prefixed struct {
	Store
	prefix string
}

func (p *prefixed) Load(ctx context.Context, key string) ([]byte, error) {
	return p.Store.Load(ctx, p.prefix+key)
}

func (p *prefixed) Save(ctx context.Context, key string, data []byte) error {
	return p.Store.Save(ctx, p.prefix+key, data)
}
