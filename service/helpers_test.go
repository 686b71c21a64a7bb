package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/layer-3/invoicegate/adapters/store"
	"github.com/layer-3/invoicegate/adapters/tokenizer"
	"github.com/layer-3/invoicegate/adapters/wallets"
	"github.com/layer-3/invoicegate/core"
	"github.com/layer-3/invoicegate/internal/eth"
	"github.com/stretchr/testify/require"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingPublisher struct {
	mu      sync.Mutex
	logouts []string
	linked  []*core.UserWallet
	err     error
}

func (p *recordingPublisher) PublishLogout(ctx context.Context, subject, tokenID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logouts = append(p.logouts, subject+"/"+tokenID)
	return p.err
}

func (p *recordingPublisher) PublishWalletLinked(ctx context.Context, wallet *core.UserWallet) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.linked = append(p.linked, wallet)
	return p.err
}

type fixture struct {
	clock      *fakeClock
	challenges *store.MemoryChallengeStore
	wallets    *wallets.MemoryRepository
	events     *recordingPublisher
	auth       *AuthService
	link       *WalletService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	challenges := store.NewMemoryChallengeStore(clock.Now)
	repo := wallets.NewMemoryRepository()
	events := &recordingPublisher{}
	tok := tokenizer.NewJWTTokenizer([]byte("test-secret"), tokenizer.WithClock(clock.Now))

	return &fixture{
		clock:      clock,
		challenges: challenges,
		wallets:    repo,
		events:     events,
		auth: NewAuthService(tok, store.NewMemoryRevocationStore(), challenges, repo, events,
			WithClock(clock.Now), WithAppName("Test App")),
		link: NewWalletService(repo, challenges, events, WithClock(clock.Now)),
	}
}

func testSigner(t *testing.T) *eth.Signer {
	t.Helper()
	signer, err := eth.SignerFromHex(testKey)
	require.NoError(t, err)
	return signer
}

func randomSigner(t *testing.T) *eth.Signer {
	t.Helper()
	signer, err := eth.GenerateSigner()
	require.NoError(t, err)
	return signer
}

func sign(t *testing.T, signer *eth.Signer, message string) string {
	t.Helper()
	sig, err := signer.SignPersonal(message)
	require.NoError(t, err)
	return sig
}
