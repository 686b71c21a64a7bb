// Package tokenstore persists the client's token pair.
package tokenstore

import (
	"context"
	"sync"

	"github.com/layer-3/invoicegate/core"
)

// MemoryStore keeps the pair in process memory. One instance may be shared by
// several session managers to model tabs of the same origin.
type MemoryStore struct {
	mu   sync.RWMutex
	pair core.TokenPair
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns the stored pair
func (s *MemoryStore) Load(ctx context.Context) (core.TokenPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair, nil
}

// Save replaces the stored pair
func (s *MemoryStore) Save(ctx context.Context, pair core.TokenPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = pair
	return nil
}

// Clear removes the stored pair
func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = core.TokenPair{}
	return nil
}
