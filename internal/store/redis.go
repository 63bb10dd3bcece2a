package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "antiforge"

// RedisStore keeps sessions and rate-limit counters in Redis, so multiple
// server instances can share them. Session entries expire with the session.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) sessionKey(id string) string {
	return fmt.Sprintf("%s:session:%s", s.prefix, id)
}

func (s *RedisStore) counterKey(key string) string {
	return fmt.Sprintf("%s:issues:%s", s.prefix, key)
}

func (s *RedisStore) Save(ctx context.Context, sess Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		ttl = time.Minute
	}
	if err := s.client.Set(ctx, s.sessionKey(sess.ID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	payload, err := s.client.Get(ctx, s.sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	return &sess, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

func (s *RedisStore) CountIssue(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	rkey := s.counterKey(key)

	count, err := s.client.Incr(ctx, rkey).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("incrementing issue counter: %w", err)
	}
	// the first increment opens the window
	if count == 1 {
		if err := s.client.Expire(ctx, rkey, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("setting counter window: %w", err)
		}
	}

	ttl, err := s.client.TTL(ctx, rkey).Result()
	if err != nil || ttl < 0 {
		ttl = window
	}
	return count, ttl, nil
}
