package session

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"

	"github.com/turtacn/dashgate/internal/domain/service"
)

var (
	_ service.RevocationStore = (*MemoryRevocationStore)(nil)
	_ service.RevocationStore = (*RedisRevocationStore)(nil)
)

// MemoryRevocationStore keeps revoked session ids in process memory.
type MemoryRevocationStore struct {
	cache *cache.Cache
}

// NewMemoryRevocationStore creates an in-memory store.
func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{cache: cache.New(cache.NoExpiration, 10*time.Minute)}
}

func (s *MemoryRevocationStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	s.cache.Set(jti, struct{}{}, ttl)
	return nil
}

func (s *MemoryRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	_, found := s.cache.Get(jti)
	return found, nil
}

// RedisRevocationStore shares revoked session ids between instances.
type RedisRevocationStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisRevocationStore creates a Redis-backed store.
func NewRedisRevocationStore(client redis.UniversalClient) *RedisRevocationStore {
	return &RedisRevocationStore{client: client, prefix: "dashgate:revoked"}
}

func (s *RedisRevocationStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(jti), 1, ttl).Err()
}

func (s *RedisRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisRevocationStore) key(jti string) string {
	return fmt.Sprintf("%s:%s", s.prefix, jti)
}
