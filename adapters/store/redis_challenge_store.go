package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/layer-3/invoicegate/core"
	"github.com/redis/go-redis/v9"
)

// consumeScript flips isUsed on an unused, unexpired challenge in one step.
// KEYS[1] challenge key, ARGV[1] now (unix ms), ARGV[2] usedAt (RFC 3339).
var consumeScript = redis.NewScript(`
local raw = redis.call('GET', KEYS[1])
if not raw then
	return false
end
local c = cjson.decode(raw)
if c.isUsed or tonumber(c.expiresAtMs) <= tonumber(ARGV[1]) then
	return false
end
c.isUsed = true
c.usedAt = ARGV[2]
local out = cjson.encode(c)
redis.call('SET', KEYS[1], out, 'KEEPTTL')
return out
`)

// challengeRecord is the stored form; expiresAtMs lets the script compare times
type challengeRecord struct {
	core.Challenge
	ExpiresAtMs int64 `json:"expiresAtMs"`
}

// RedisChallengeStore keeps challenges in Redis with a TTL equal to their lifetime
type RedisChallengeStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedisChallengeStore creates a challenge store on client. A nil clock means time.Now.
func NewRedisChallengeStore(client redis.UniversalClient, now func() time.Time) *RedisChallengeStore {
	if now == nil {
		now = time.Now
	}
	return &RedisChallengeStore{
		client: client,
		prefix: "invoicegate:challenge:",
		now:    now,
	}
}

func (s *RedisChallengeStore) key(address, nonce string) string {
	return s.prefix + core.NormalizeAddress(address) + ":" + nonce
}

// Save stores the challenge until it expires
func (s *RedisChallengeStore) Save(ctx context.Context, challenge *core.Challenge) error {
	ttl := challenge.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return fmt.Errorf("challenge already expired: %w", core.ErrStoreOperationFailed)
	}

	payload, err := encodeChallenge(challenge)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, s.key(challenge.WalletAddress, challenge.Nonce), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save challenge: %w", err)
	}
	return nil
}

// Consume atomically marks the challenge used
func (s *RedisChallengeStore) Consume(ctx context.Context, walletAddress, nonce string) (*core.Challenge, error) {
	now := s.now()
	res, err := consumeScript.Run(ctx, s.client,
		[]string{s.key(walletAddress, nonce)},
		now.UnixMilli(), now.UTC().Format(time.RFC3339Nano),
	).Text()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrInvalidChallenge
		}
		return nil, fmt.Errorf("failed to consume challenge: %w", err)
	}

	return decodeChallenge(res)
}

func encodeChallenge(challenge *core.Challenge) (string, error) {
	payload, err := json.Marshal(challengeRecord{
		Challenge:   *challenge,
		ExpiresAtMs: challenge.ExpiresAt.UnixMilli(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal challenge: %w", err)
	}
	return string(payload), nil
}

func decodeChallenge(raw string) (*core.Challenge, error) {
	var rec challengeRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal challenge: %w", err)
	}
	return &rec.Challenge, nil
}
