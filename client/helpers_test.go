package client

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/layer-3/invoicegate/adapters/tokenstore"
	"github.com/layer-3/invoicegate/core"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_750_000_000, 0)}
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

// fakeBackend issues unsigned-by-server tokens from the test clock
type fakeBackend struct {
	t     *testing.T
	clock *fakeClock
	ttl   time.Duration

	refreshCalls atomic.Int32
	logoutCalls  atomic.Int32
	refreshGate  chan struct{} // when set, Refresh waits on it
	refreshErr   error
	loginErr     error
}

func newFakeBackend(t *testing.T, clock *fakeClock) *fakeBackend {
	return &fakeBackend{t: t, clock: clock, ttl: 2 * time.Hour}
}

func (b *fakeBackend) pair(subject string) core.TokenPair {
	exp := b.clock.Now().Add(b.ttl)
	return core.TokenPair{
		AccessToken:  makeToken(b.t, subject, "", exp),
		RefreshToken: makeToken(b.t, subject, "", exp.Add(24*time.Hour)),
	}
}

func (b *fakeBackend) CreateChallenge(ctx context.Context, address string) (*Challenge, error) {
	return nil, errors.New("not supported")
}

func (b *fakeBackend) VerifyWallet(ctx context.Context, req VerifyRequest) (core.TokenPair, error) {
	return core.TokenPair{}, errors.New("not supported")
}

func (b *fakeBackend) Refresh(ctx context.Context, refreshToken string) (core.TokenPair, error) {
	b.refreshCalls.Add(1)
	if b.refreshGate != nil {
		<-b.refreshGate
	}
	if b.refreshErr != nil {
		return core.TokenPair{}, b.refreshErr
	}
	return b.pair("refreshed"), nil
}

func (b *fakeBackend) Logout(ctx context.Context, refreshToken string) error {
	b.logoutCalls.Add(1)
	return nil
}

func (b *fakeBackend) Login(ctx context.Context, creds Credentials) (core.TokenPair, error) {
	if b.loginErr != nil {
		return core.TokenPair{}, b.loginErr
	}
	return b.pair(creds.Email), nil
}

func (b *fakeBackend) Register(ctx context.Context, creds Credentials) (core.TokenPair, error) {
	return b.Login(ctx, creds)
}

func (b *fakeBackend) SocialLogin(ctx context.Context, creds SocialCredentials) (core.TokenPair, error) {
	return b.pair(creds.Provider + ":" + creds.Token), nil
}

func newManager(t *testing.T, cfg Config) *SessionManager {
	t.Helper()
	if cfg.Store == nil {
		cfg.Store = tokenstore.NewMemoryStore()
	}
	m, err := NewSessionManager(cfg)
	require.NoError(t, err)
	return m
}
