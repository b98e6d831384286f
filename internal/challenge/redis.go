package challenge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "hillmyna:challenge:"

// RedisStore keeps challenges in Redis so several server instances can share
// them. Keys expire with the challenge.
type RedisStore struct {
	rc  *redis.Client
	now func() time.Time
}

// NewRedisStore creates a store on top of an existing client.
func NewRedisStore(rc *redis.Client) *RedisStore {
	return &RedisStore{rc: rc, now: time.Now}
}

// Put stores c until its expiry time.
func (s *RedisStore) Put(ctx context.Context, c *Challenge) error {
	if c.ID == "" {
		return errors.New("challenge has no id")
	}
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}

	var ttl time.Duration
	if !c.ExpiresAt.IsZero() {
		ttl = c.ExpiresAt.Sub(s.now())
		if ttl <= 0 {
			return ErrExpired
		}
	}
	return s.rc.Set(ctx, redisKeyPrefix+c.ID, data, ttl).Err()
}

// Take atomically fetches and deletes the challenge.
func (s *RedisStore) Take(ctx context.Context, id string) (*Challenge, error) {
	data, err := s.rc.GetDel(ctx, redisKeyPrefix+id).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, ErrNotFound
	case err != nil:
		return nil, err
	}

	var c Challenge
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode challenge %s: %w", id, err)
	}
	return &c, nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rc.Ping(ctx).Err()
}
