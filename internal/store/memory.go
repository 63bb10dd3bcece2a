package store

import (
	"context"
	"sync"
	"time"
)

type memoryCounter struct {
	count     int64
	windowEnd time.Time
}

type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	counters map[string]memoryCounter
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Session),
		counters: make(map[string]memoryCounter),
	}
}

func (s *MemoryStore) Save(_ context.Context, sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sess.ID] = sess
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if !sess.ExpiresAt.IsZero() && time.Now().After(sess.ExpiresAt) {
		delete(s.sessions, id)
		return nil, ErrSessionNotFound
	}
	return &sess, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

func (s *MemoryStore) CountIssue(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	c, ok := s.counters[key]
	if !ok || now.After(c.windowEnd) {
		c = memoryCounter{windowEnd: now.Add(window)}
	}
	c.count++
	s.counters[key] = c

	return c.count, c.windowEnd.Sub(now), nil
}
