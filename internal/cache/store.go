package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store is a byte cache shared across replicas when backed by redis.
// Invalidate drops every key of a namespace at once.
type Store interface {
	Get(ctx context.Context, namespace, key string) ([]byte, bool, error)
	Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error
	Invalidate(ctx context.Context, namespace string) error
}

// RedisStore prefixes keys with a per-namespace generation number so that
// invalidation is a single INCR instead of a key scan.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) generation(ctx context.Context, namespace string) (int64, error) {
	gen, err := s.client.Get(ctx, s.prefix+":gen:"+namespace).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (s *RedisStore) key(ctx context.Context, namespace, key string) (string, error) {
	gen, err := s.generation(ctx, namespace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%s:%d:%s", s.prefix, namespace, gen, key), nil
}

func (s *RedisStore) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	full, err := s.key(ctx, namespace, key)
	if err != nil {
		return nil, false, err
	}
	value, err := s.client.Get(ctx, full).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (s *RedisStore) Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	full, err := s.key(ctx, namespace, key)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, full, value, ttl).Err()
}

func (s *RedisStore) Invalidate(ctx context.Context, namespace string) error {
	return s.client.Incr(ctx, s.prefix+":gen:"+namespace).Err()
}

// MemoryStore is the single-process Store.
type MemoryStore struct {
	items Cache[string, []byte]
	gens  Cache[string, int64]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: NewTTLCache[string, []byte](2048),
		gens:  NewTTLCache[string, int64](64),
	}
}

func (s *MemoryStore) key(namespace, key string) string {
	gen, _ := s.gens.Get(namespace)
	return fmt.Sprintf("%s:%d:%s", namespace, gen, key)
}

func (s *MemoryStore) Get(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	value, ok := s.items.Get(s.key(namespace, key))
	return value, ok, nil
}

func (s *MemoryStore) Set(ctx context.Context, namespace, key string, value []byte, ttl time.Duration) error {
	s.items.Set(s.key(namespace, key), value, ttl)
	return nil
}

func (s *MemoryStore) Invalidate(ctx context.Context, namespace string) error {
	gen, _ := s.gens.Get(namespace)
	s.gens.Set(namespace, gen+1, 24*365*time.Hour)
	return nil
}
