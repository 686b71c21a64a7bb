package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/layer-3/invoicegate/core"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "invoicegate:session:"

// RedisStore shares the pair between processes under one key per profile
type RedisStore struct {
	client redis.UniversalClient
	key    string
}

// NewRedisStore creates a store for the given profile name
func NewRedisStore(client redis.UniversalClient, profile string) *RedisStore {
	return &RedisStore{
		client: client,
		key:    keyPrefix + profile,
	}
}

// Load returns the stored pair, or an empty pair when none is stored
func (s *RedisStore) Load(ctx context.Context) (core.TokenPair, error) {
	raw, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return core.TokenPair{}, nil
	}
	if err != nil {
		return core.TokenPair{}, fmt.Errorf("%w: %v", core.ErrStoreOperationFailed, err)
	}
	return decodePair(raw)
}

// Save replaces the stored pair
func (s *RedisStore) Save(ctx context.Context, pair core.TokenPair) error {
	payload, err := json.Marshal(pair)
	if err != nil {
		return fmt.Errorf("failed to marshal token pair: %w", err)
	}
	if err := s.client.Set(ctx, s.key, payload, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrStoreOperationFailed, err)
	}
	return nil
}

// Clear removes the stored pair
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("%w: %v", core.ErrStoreOperationFailed, err)
	}
	return nil
}

func decodePair(raw string) (core.TokenPair, error) {
	var pair core.TokenPair
	if err := json.Unmarshal([]byte(raw), &pair); err != nil {
		return core.TokenPair{}, fmt.Errorf("failed to decode token pair: %w", err)
	}
	return pair, nil
}
