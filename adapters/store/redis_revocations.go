package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/layer-3/invoicegate/core"
	"github.com/layer-3/invoicegate/ports"
	"github.com/redis/go-redis/v9"
)

const revocationPrefix = "invoicegate:revoked:"

// RedisRevocationStore shares revoked refresh ids between server instances.
// Entries expire with the tokens they revoke.
type RedisRevocationStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisRevocationStore creates a revocation store on client
func NewRedisRevocationStore(client redis.UniversalClient) ports.Store {
	return &RedisRevocationStore{
		client: client,
		prefix: revocationPrefix,
	}
}

// InvalidateToken revokes tokenID for ttl. The value records when the
// revocation happened. A non-positive ttl is a no-op since Redis would keep
// the key forever.
func (s *RedisRevocationStore) InvalidateToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	revokedAt := strconv.FormatInt(time.Now().UnixMilli(), 10)
	if err := s.client.Set(ctx, s.prefix+tokenID, revokedAt, ttl).Err(); err != nil {
		return fmt.Errorf("%w: revoke token: %v", core.ErrStoreOperationFailed, err)
	}
	return nil
}

// IsTokenInvalidated reports whether tokenID is currently revoked
func (s *RedisRevocationStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.prefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("%w: check revocation: %v", core.ErrStoreOperationFailed, err)
	}
	return n > 0, nil
}
