package rawi

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a Store backed by a shared Redis instance, for deployments
// where several service replicas should share one cache. Expiry is native
// Redis TTL and eviction is delegated to Redis' own maxmemory policy, so
// SizeBytes and Len are point-in-time scans meant for observability, not hot
// paths.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
	logger Logger
}

// NewRedisStore wraps rdb. All keys are stored under prefix; an empty prefix
// defaults to "rawi:".
func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "rawi:"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

// SetLogger attaches a logger for swallowed Redis failures.
func (s *RedisStore) SetLogger(logger Logger) { s.logger = logger }

// Get returns the payload for key; any Redis failure is a miss.
func (s *RedisStore) Get(key string) ([]byte, bool) {
	payload, err := s.rdb.Get(context.Background(), s.prefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) && s.logger != nil {
			s.logger.Warn("redis read failed", "key", key, "error", err)
		}
		return nil, false
	}
	return payload, true
}

// Set stores payload under key with a native Redis TTL. Failures are logged
// and swallowed.
func (s *RedisStore) Set(key string, payload []byte, ttl time.Duration) {
	if key == "" || ttl <= 0 {
		return
	}
	if err := s.rdb.Set(context.Background(), s.prefix+key, payload, ttl).Err(); err != nil {
		if s.logger != nil {
			s.logger.Warn("redis write failed", "key", key, "error", err)
		}
	}
}

// Delete removes key if present.
func (s *RedisStore) Delete(key string) {
	_ = s.rdb.Del(context.Background(), s.prefix+key).Err()
}

// Clear removes every entry under the store's prefix.
func (s *RedisStore) Clear() {
	ctx := context.Background()
	iter := s.rdb.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		_ = s.rdb.Del(ctx, iter.Val()).Err()
	}
	if err := iter.Err(); err != nil && s.logger != nil {
		s.logger.Warn("redis clear failed", "error", err)
	}
}

// SizeBytes sums the stored value lengths under the prefix.
func (s *RedisStore) SizeBytes() int64 {
	ctx := context.Background()
	var total int64
	iter := s.rdb.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		n, err := s.rdb.StrLen(ctx, iter.Val()).Result()
		if err == nil {
			total += n
		}
	}
	return total
}

// Len counts the entries under the prefix.
func (s *RedisStore) Len() int {
	ctx := context.Background()
	n := 0
	iter := s.rdb.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		n++
	}
	return n
}
