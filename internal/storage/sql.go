package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// sqlStore is the database/sql backend shared by sqlite and mysql.
type sqlStore struct {
	db     *sql.DB
	upsert string
}

func (s *sqlStore) Load(ctx context.Context, key string) ([]byte, error) {
	if s == nil || s.db == nil {
		return nil, ErrClosed
	}
	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM snapshots WHERE snapshot_key = ?`, key).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (s *sqlStore) Save(ctx context.Context, key string, data []byte) error {
	if s == nil || s.db == nil {
		return ErrClosed
	}
	_, err := s.db.ExecContext(ctx, s.upsert, key, data, time.Now().UnixMilli())
	return err
}

func (s *sqlStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
