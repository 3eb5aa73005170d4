package redisstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is a redis-backed storage.Store for browser-like hosts whose device
// storage lives behind a profile service rather than a local sandbox.
type Store struct {
	rdb   *redis.Client
	keyNS string
	ttl   time.Duration
}

// New wraps a redis client. keyPrefix namespaces every key; ttl of 0 means
// values never expire on their own.
func New(rdb *redis.Client, keyPrefix string, ttl time.Duration) *Store {
	if keyPrefix == "" {
		keyPrefix = "purchasekit:storage:"
	}
	return &Store{rdb: rdb, keyNS: keyPrefix, ttl: ttl}
}

func (s *Store) key(k string) string { return s.keyNS + k }

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.rdb.Get(ctx, s.key(key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	return s.rdb.Set(ctx, s.key(key), value, s.ttl).Err()
}

func (s *Store) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, s.key(key)).Err()
}
