package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/invoicegate/ports"
)

// MemoryRevocationStore keeps revoked refresh ids in process memory
type MemoryRevocationStore struct {
	mu      sync.RWMutex
	revoked map[string]time.Time // refresh id -> end of revocation
	now     func() time.Time
}

// NewMemoryRevocationStore creates an empty revocation store
func NewMemoryRevocationStore() ports.Store {
	return newMemoryRevocationStore(time.Now)
}

func newMemoryRevocationStore(now func() time.Time) *MemoryRevocationStore {
	return &MemoryRevocationStore{
		revoked: make(map[string]time.Time),
		now:     now,
	}
}

// InvalidateToken revokes tokenID for ttl. A longer revocation already in
// place is kept; a non-positive ttl is a no-op.
func (s *MemoryRevocationStore) InvalidateToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.purgeLocked(now)

	until := now.Add(ttl)
	if current, ok := s.revoked[tokenID]; !ok || current.Before(until) {
		s.revoked[tokenID] = until
	}
	return nil
}

// IsTokenInvalidated reports whether tokenID is currently revoked
func (s *MemoryRevocationStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	s.mu.RLock()
	until, ok := s.revoked[tokenID]
	s.mu.RUnlock()

	return ok && s.now().Before(until), nil
}

// Len counts the revocations held, lapsed ones included
func (s *MemoryRevocationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.revoked)
}

// purgeLocked drops lapsed revocations; writes are rare enough to pay for it
func (s *MemoryRevocationStore) purgeLocked(now time.Time) {
	for id, until := range s.revoked {
		if !until.After(now) {
			delete(s.revoked, id)
		}
	}
}
