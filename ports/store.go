package ports

import (
	"context"
	"time"

	"github.com/layer-3/invoicegate/core"
)

// Store interface for token invalidation
type Store interface {
	InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error
	IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error)
}

// ChallengeStore persists outstanding challenges and enforces one-time use.
type ChallengeStore interface {
	Save(ctx context.Context, challenge *core.Challenge) error

	// Consume atomically checks that the challenge for (walletAddress, nonce)
	// exists, is unused and unexpired, and marks it used. Any failed condition
	// yields core.ErrInvalidChallenge.
	Consume(ctx context.Context, walletAddress, nonce string) (*core.Challenge, error)
}

// ChallengeSweeper is implemented by challenge stores that need explicit purging
type ChallengeSweeper interface {
	Sweep(ctx context.Context, now time.Time) (int, error)
}
