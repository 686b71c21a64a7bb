package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/layer-3/invoicegate/adapters/store"
	"github.com/layer-3/invoicegate/adapters/tokenizer"
	"github.com/layer-3/invoicegate/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nonceRe = regexp.MustCompile(`^[0-9a-f]{64}$`)

type failingChallengeStore struct{}

func (failingChallengeStore) Save(context.Context, *core.Challenge) error {
	return errors.New("connection refused")
}

func (failingChallengeStore) Consume(context.Context, string, string) (*core.Challenge, error) {
	return nil, errors.New("connection refused")
}

func TestAuthService_CreateChallenge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ch, err := f.auth.CreateChallenge(ctx, "  0xAbCdEf0000000000000000000000000000000001 ")
	require.NoError(t, err)

	assert.Equal(t, "0xabcdef0000000000000000000000000000000001", ch.WalletAddress)
	assert.Regexp(t, nonceRe, ch.Nonce)
	assert.NotEmpty(t, ch.ID)
	assert.False(t, ch.IsUsed)
	assert.Equal(t, f.clock.Now().Add(5*time.Minute), ch.ExpiresAt)
	assert.Equal(t, BuildChallengeMessage("Test App", ch.WalletAddress, f.clock.Now(), ch.Nonce), ch.Message)
	assert.Contains(t, ch.Message, "Wallet: 0xabcdef0000000000000000000000000000000001")
	assert.Equal(t, 1, f.challenges.Len())

	other, err := f.auth.CreateChallenge(ctx, ch.WalletAddress)
	require.NoError(t, err)
	assert.NotEqual(t, ch.Nonce, other.Nonce)
	assert.Equal(t, 2, f.challenges.Len(), "earlier challenges are not overwritten")
}

func TestAuthService_CreateChallengeErrors(t *testing.T) {
	f := newFixture(t)

	_, err := f.auth.CreateChallenge(context.Background(), "   ")
	assert.ErrorIs(t, err, core.ErrInvalidAddress)

	broken := NewAuthService(nil, store.NewMemoryRevocationStore(), failingChallengeStore{}, nil, &recordingPublisher{})
	ch, err := broken.CreateChallenge(context.Background(), "0xabc")
	assert.Nil(t, ch)
	assert.ErrorIs(t, err, core.ErrChallengeUnavailable)
}

func TestAuthService_VerifyWallet(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		f := newFixture(t)
		signer := testSigner(t)
		address := signer.Address().Hex()

		ch, err := f.auth.CreateChallenge(ctx, address)
		require.NoError(t, err)

		tokens, err := f.auth.VerifyWallet(ctx, strings.ToUpper(address[:2])+address[2:], sign(t, signer, ch.Message), ch.Message, ch.Nonce)
		require.NoError(t, err)
		assert.Equal(t, strings.ToLower(address), tokens.WalletAddress)
		assert.Equal(t, strings.ToLower(address), tokens.User.ID)
		assert.Equal(t, core.RoleWallet, tokens.User.Role)
		assert.Equal(t, time.Hour, tokens.ExpiresIn)

		session, err := f.auth.ValidateAccessToken(ctx, tokens.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, strings.ToLower(address), session.WalletAddress)
	})

	t.Run("wrong signer", func(t *testing.T) {
		f := newFixture(t)
		claimed := testSigner(t)

		ch, err := f.auth.CreateChallenge(ctx, claimed.Address().Hex())
		require.NoError(t, err)

		_, err = f.auth.VerifyWallet(ctx, claimed.Address().Hex(), sign(t, randomSigner(t), ch.Message), ch.Message, ch.Nonce)
		assert.ErrorIs(t, err, core.ErrInvalidSignature)
	})

	t.Run("replay", func(t *testing.T) {
		f := newFixture(t)
		signer := testSigner(t)
		address := signer.Address().Hex()

		ch, err := f.auth.CreateChallenge(ctx, address)
		require.NoError(t, err)
		sig := sign(t, signer, ch.Message)

		_, err = f.auth.VerifyWallet(ctx, address, sig, ch.Message, ch.Nonce)
		require.NoError(t, err)

		_, err = f.auth.VerifyWallet(ctx, address, sig, ch.Message, ch.Nonce)
		assert.ErrorIs(t, err, core.ErrInvalidChallenge)
		assert.EqualError(t, err, "invalid or expired challenge")
	})

	t.Run("expired challenge with valid signature", func(t *testing.T) {
		f := newFixture(t)
		signer := testSigner(t)
		address := signer.Address().Hex()

		ch, err := f.auth.CreateChallenge(ctx, address)
		require.NoError(t, err)
		f.clock.Advance(5 * time.Minute)

		_, err = f.auth.VerifyWallet(ctx, address, sign(t, signer, ch.Message), ch.Message, ch.Nonce)
		assert.ErrorIs(t, err, core.ErrInvalidChallenge)
	})

	t.Run("altered message", func(t *testing.T) {
		f := newFixture(t)
		signer := testSigner(t)
		address := signer.Address().Hex()

		ch, err := f.auth.CreateChallenge(ctx, address)
		require.NoError(t, err)
		altered := ch.Message + " "

		_, err = f.auth.VerifyWallet(ctx, address, sign(t, signer, altered), altered, ch.Nonce)
		assert.ErrorIs(t, err, core.ErrInvalidChallenge)
	})

	t.Run("challenge of another address", func(t *testing.T) {
		f := newFixture(t)
		signer := testSigner(t)

		ch, err := f.auth.CreateChallenge(ctx, randomSigner(t).Address().Hex())
		require.NoError(t, err)

		_, err = f.auth.VerifyWallet(ctx, signer.Address().Hex(), sign(t, signer, ch.Message), ch.Message, ch.Nonce)
		assert.ErrorIs(t, err, core.ErrInvalidChallenge)
	})

	t.Run("malformed input", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.auth.VerifyWallet(ctx, "", "0x00", "msg", "n")
		assert.ErrorIs(t, err, core.ErrInvalidAddress)

		_, err = f.auth.VerifyWallet(ctx, "0xabc", "", "msg", "n")
		assert.ErrorIs(t, err, core.ErrInvalidInput)
	})

	t.Run("linked wallet resolves to its owner", func(t *testing.T) {
		f := newFixture(t)
		signer := testSigner(t)
		address := signer.Address().Hex()

		_, err := f.wallets.Create(ctx, &core.UserWallet{UserID: "user-42", WalletAddress: address, Network: "ethereum"})
		require.NoError(t, err)

		ch, err := f.auth.CreateChallenge(ctx, address)
		require.NoError(t, err)

		tokens, err := f.auth.VerifyWallet(ctx, address, sign(t, signer, ch.Message), ch.Message, ch.Nonce)
		require.NoError(t, err)
		assert.Equal(t, "user-42", tokens.User.ID)
		assert.Equal(t, core.RoleUser, tokens.User.Role)
	})
}

func TestAuthService_VerifyWalletConcurrentReplay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	signer := testSigner(t)
	address := signer.Address().Hex()

	ch, err := f.auth.CreateChallenge(ctx, address)
	require.NoError(t, err)
	sig := sign(t, signer, ch.Message)

	const attempts = 16
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		go func() {
			_, err := f.auth.VerifyWallet(ctx, address, sig, ch.Message, ch.Nonce)
			results <- err
		}()
	}

	succeeded := 0
	for i := 0; i < attempts; i++ {
		if err := <-results; err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, core.ErrInvalidChallenge)
		}
	}
	assert.Equal(t, 1, succeeded)
}

func login(t *testing.T, f *fixture) *Tokens {
	t.Helper()
	ctx := context.Background()
	signer := testSigner(t)
	address := signer.Address().Hex()

	ch, err := f.auth.CreateChallenge(ctx, address)
	require.NoError(t, err)
	tokens, err := f.auth.VerifyWallet(ctx, address, sign(t, signer, ch.Message), ch.Message, ch.Nonce)
	require.NoError(t, err)
	return tokens
}

func TestAuthService_Refresh(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := login(t, f)

	f.clock.Advance(time.Minute)
	second, err := f.auth.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.Equal(t, first.User, second.User)
	assert.Equal(t, first.WalletAddress, second.WalletAddress)

	_, err = f.auth.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, core.ErrTokenInvalidated, "rotated refresh token cannot be reused")

	_, err = f.auth.ValidateAccessToken(ctx, first.AccessToken)
	assert.ErrorIs(t, err, core.ErrTokenInvalidated, "access tokens of a rotated refresh token are revoked")

	_, err = f.auth.ValidateAccessToken(ctx, second.AccessToken)
	assert.NoError(t, err)

	_, err = f.auth.Refresh(ctx, "not-a-token")
	assert.ErrorIs(t, err, core.ErrInvalidToken)

	_, err = f.auth.Refresh(ctx, second.AccessToken)
	assert.ErrorIs(t, err, core.ErrInvalidToken, "access token is not accepted as refresh token")
}

func TestAuthService_RefreshExpired(t *testing.T) {
	f := newFixture(t)
	tokens := login(t, f)

	f.clock.Advance(5*24*time.Hour + time.Second)
	_, err := f.auth.Refresh(context.Background(), tokens.RefreshToken)
	assert.ErrorIs(t, err, core.ErrTokenExpired)
}

func TestAuthService_AccessTokenExpiry(t *testing.T) {
	f := newFixture(t)
	tokens := login(t, f)

	f.clock.Advance(time.Hour)
	_, err := f.auth.ValidateAccessToken(context.Background(), tokens.AccessToken)
	assert.ErrorIs(t, err, core.ErrTokenExpired)
}

func TestAuthService_Logout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tokens := login(t, f)

	require.NoError(t, f.auth.Logout(ctx, tokens.RefreshToken))

	_, err := f.auth.ValidateAccessToken(ctx, tokens.AccessToken)
	assert.ErrorIs(t, err, core.ErrTokenInvalidated)

	_, err = f.auth.Refresh(ctx, tokens.RefreshToken)
	assert.ErrorIs(t, err, core.ErrTokenInvalidated)

	require.Len(t, f.events.logouts, 1)
	assert.True(t, strings.HasPrefix(f.events.logouts[0], tokens.User.ID+"/"))

	assert.ErrorIs(t, f.auth.Logout(ctx, "garbage"), core.ErrInvalidToken)
}

func TestAuthService_LogoutSurvivesPublishFailure(t *testing.T) {
	f := newFixture(t)
	tokens := login(t, f)
	f.events.err = errors.New("broker down")

	assert.NoError(t, f.auth.Logout(context.Background(), tokens.RefreshToken))
}

func TestAuthService_RunChallengeSweeper(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for i := 0; i < 3; i++ {
		_, err := f.auth.CreateChallenge(ctx, "0xabc")
		require.NoError(t, err)
	}
	f.clock.Advance(10 * time.Minute)

	done := make(chan struct{})
	go func() {
		f.auth.RunChallengeSweeper(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return f.challenges.Len() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestAuthService_SweeperSkipsSelfExpiringStores(t *testing.T) {
	auth := NewAuthService(tokenizer.NewJWTTokenizer([]byte("s")), store.NewMemoryRevocationStore(), failingChallengeStore{}, nil, &recordingPublisher{})

	done := make(chan struct{})
	go func() {
		auth.RunChallengeSweeper(context.Background(), time.Millisecond)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper should return for stores without Sweep")
	}
}
