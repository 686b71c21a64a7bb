package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/invoicegate/core"
)

// MemoryChallengeStore keeps challenges in process memory keyed by (address, nonce)
type MemoryChallengeStore struct {
	mu         sync.Mutex
	challenges map[string]core.Challenge
	now        func() time.Time
}

// NewMemoryChallengeStore creates an empty store. A nil clock means time.Now.
func NewMemoryChallengeStore(now func() time.Time) *MemoryChallengeStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryChallengeStore{
		challenges: make(map[string]core.Challenge),
		now:        now,
	}
}

func challengeKey(address, nonce string) string {
	return core.NormalizeAddress(address) + "|" + nonce
}

// Save stores a copy of challenge and lazily drops expired entries
func (s *MemoryChallengeStore) Save(ctx context.Context, challenge *core.Challenge) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeLocked(s.now())
	s.challenges[challengeKey(challenge.WalletAddress, challenge.Nonce)] = *challenge
	return nil
}

// Consume marks the challenge used if it is unused and unexpired
func (s *MemoryChallengeStore) Consume(ctx context.Context, walletAddress, nonce string) (*core.Challenge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := challengeKey(walletAddress, nonce)
	ch, ok := s.challenges[key]
	now := s.now()
	if !ok || !ch.Consumable(now) {
		return nil, core.ErrInvalidChallenge
	}

	ch.MarkUsed(now)
	s.challenges[key] = ch
	return &ch, nil
}

// Sweep drops expired challenges and returns how many were removed
func (s *MemoryChallengeStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.purgeLocked(now), nil
}

// Len returns the number of stored challenges
func (s *MemoryChallengeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.challenges)
}

func (s *MemoryChallengeStore) purgeLocked(now time.Time) int {
	removed := 0
	for key, ch := range s.challenges {
		if !ch.ExpiresAt.After(now) {
			delete(s.challenges, key)
			removed++
		}
	}
	return removed
}
