package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sixstreet/storefront/internal/redisx"
)

// Storage holds named entries per browser session.
type Storage interface {
	Get(ctx context.Context, sid, name string) (string, bool, error)
	Set(ctx context.Context, sid, name, value string, ttl time.Duration) error
	Delete(ctx context.Context, sid, name string) error
}

type RedisStorage struct {
	RDB redis.Cmdable
}

func (s RedisStorage) key(sid, name string) string {
	return fmt.Sprintf(redisx.KeySession, sid, name)
}

func (s RedisStorage) Get(ctx context.Context, sid, name string) (string, bool, error) {
	v, err := s.RDB.Get(ctx, s.key(sid, name)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s RedisStorage) Set(ctx context.Context, sid, name, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = redisx.TTLSession
	}
	return s.RDB.Set(ctx, s.key(sid, name), value, ttl).Err()
}

func (s RedisStorage) Delete(ctx context.Context, sid, name string) error {
	return s.RDB.Del(ctx, s.key(sid, name)).Err()
}

// MemoryStorage ignores ttl; expiry is enforced by the payload.
type MemoryStorage struct {
	mu sync.Mutex
	m  map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{m: map[string]string{}}
}

func (s *MemoryStorage) Get(_ context.Context, sid, name string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[sid+"/"+name]
	return v, ok, nil
}

func (s *MemoryStorage) Set(_ context.Context, sid, name, value string, _ time.Duration) error {
	s.mu.Lock()
	s.m[sid+"/"+name] = value
	s.mu.Unlock()
	return nil
}

func (s *MemoryStorage) Delete(_ context.Context, sid, name string) error {
	s.mu.Lock()
	delete(s.m, sid+"/"+name)
	s.mu.Unlock()
	return nil
}
