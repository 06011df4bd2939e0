package session

import (
	"context"
	"sync"
)

type memoryStore struct {
	mu sync.Mutex
	m  map[int64]Session
}

func NewMemory() Store {
	return &memoryStore{m: map[int64]Session{}}
}

func (s *memoryStore) Get(_ context.Context, user int64) (Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[user]
	return v, ok, nil
}

func (s *memoryStore) Put(_ context.Context, user int64, v Session) error {
	s.mu.Lock()
	s.m[user] = v
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Delete(_ context.Context, user int64) error {
	s.mu.Lock()
	delete(s.m, user)
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Close() error { return nil }
