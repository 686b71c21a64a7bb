package tokenizer

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/invoicegate/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSession(now time.Time) *core.Session {
	return &core.Session{
		ID:            "session-1",
		UserID:        "user-1",
		Email:         "freelancer@example.com",
		Role:          core.RoleUser,
		WalletAddress: "0xabc",
		IssuedAt:      now,
		AccessExpiry:  now.Add(time.Hour),
		RefreshExpiry: now.Add(120 * time.Hour),
		RefreshID:     "refresh-1",
	}
}

func TestJWTTokenizer_AccessRoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	tk := NewJWTTokenizer([]byte("secret"))

	token, err := tk.SessionToAccessToken(testSession(now))
	require.NoError(t, err)

	session, err := tk.AccessTokenToSession(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", session.UserID)
	assert.Equal(t, "freelancer@example.com", session.Email)
	assert.Equal(t, core.RoleUser, session.Role)
	assert.Equal(t, "refresh-1", session.RefreshID)
	assert.Equal(t, "0xabc", session.WalletAddress)
	assert.True(t, session.AccessExpiry.Equal(now.Add(time.Hour)))
}

func TestJWTTokenizer_RefreshRoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	tk := NewJWTTokenizer([]byte("secret"))

	token, err := tk.SessionToRefreshToken(testSession(now))
	require.NoError(t, err)

	session, err := tk.RefreshTokenToSession(token)
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", session.RefreshID)
	assert.Equal(t, "user-1", session.UserID)
	assert.True(t, session.RefreshExpiry.Equal(now.Add(120*time.Hour)))
}

func TestJWTTokenizer_Rejections(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	tk := NewJWTTokenizer([]byte("secret"))

	access, err := tk.SessionToAccessToken(testSession(now))
	require.NoError(t, err)
	refresh, err := tk.SessionToRefreshToken(testSession(now))
	require.NoError(t, err)

	t.Run("audience mismatch", func(t *testing.T) {
		_, err := tk.AccessTokenToSession(refresh)
		assert.ErrorIs(t, err, core.ErrInvalidToken)
		_, err = tk.RefreshTokenToSession(access)
		assert.ErrorIs(t, err, core.ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := NewJWTTokenizer([]byte("other")).AccessTokenToSession(access)
		assert.ErrorIs(t, err, core.ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		later := NewJWTTokenizer([]byte("secret"), WithClock(func() time.Time { return now.Add(2 * time.Hour) }))
		_, err := later.AccessTokenToSession(access)
		assert.ErrorIs(t, err, core.ErrTokenExpired)
	})

	t.Run("none algorithm", func(t *testing.T) {
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, AccessClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "user-1",
				Audience:  jwt.ClaimStrings{AudienceAccess},
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = tk.AccessTokenToSession(unsigned)
		assert.ErrorIs(t, err, core.ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := tk.AccessTokenToSession("not.a.jwt")
		assert.ErrorIs(t, err, core.ErrInvalidToken)
	})
}
