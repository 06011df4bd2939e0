package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	logx "postbot/pkg/logx"

	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr      string
	Username  string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration // 0 keeps sessions until cancelled or dispatched
}

type redisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	log    logx.Logger
}

// OpenRedis connects and pings before returning.
func OpenRedis(cfg RedisConfig, log logx.Logger) (Store, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("session redis ping: %w", err)
	}
	return &redisStore{
		client: client,
		prefix: cfg.KeyPrefix,
		ttl:    cfg.TTL,
		log:    log.With(logx.String("comp", "session.redis")),
	}, nil
}

func (s *redisStore) key(user int64) string {
	return s.prefix + "session:" + strconv.FormatInt(user, 10)
}

func (s *redisStore) Get(ctx context.Context, user int64) (Session, bool, error) {
	b, err := s.client.Get(ctx, s.key(user)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, err
	}
	var v Session
	if err := json.Unmarshal(b, &v); err != nil {
		s.log.Warn("dropping unreadable session", logx.Int64("user_id", user), logx.Err(err))
		_ = s.client.Del(ctx, s.key(user)).Err()
		return Session{}, false, nil
	}
	return v, true, nil
}

func (s *redisStore) Put(ctx context.Context, user int64, v Session) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(user), b, s.ttl).Err()
}

func (s *redisStore) Delete(ctx context.Context, user int64) error {
	return s.client.Del(ctx, s.key(user)).Err()
}

func (s *redisStore) Close() error { return s.client.Close() }
