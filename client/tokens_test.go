package client

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/invoicegate/internal/eth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeToken(t *testing.T, subject, wallet string, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(exp.Add(-time.Hour)),
		},
		Email:  subject + "@example.com",
		Role:   "user",
		Wallet: wallet,
	}).SignedString([]byte("client-test"))
	require.NoError(t, err)
	return token
}

func TestTokenExpiryMath(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	soon := makeToken(t, "u1", "", now.Add(60*time.Second))
	assert.False(t, IsTokenExpired(soon, now))
	assert.True(t, ShouldRefreshToken(soon, now))

	later := makeToken(t, "u1", "", now.Add(600*time.Second))
	assert.False(t, IsTokenExpired(later, now))
	assert.False(t, ShouldRefreshToken(later, now))

	edge := makeToken(t, "u1", "", now.Add(RefreshBuffer))
	assert.True(t, ShouldRefreshToken(edge, now), "the buffer boundary refreshes")

	exact := makeToken(t, "u1", "", now)
	assert.True(t, IsTokenExpired(exact, now))
	assert.True(t, IsTokenExpired(exact, now.Add(time.Second)))
}

func TestDecodeToken(t *testing.T) {
	exp := time.Unix(1_700_000_000, 0)
	claims := DecodeToken(makeToken(t, "u1", "0xabc", exp))
	require.NotNil(t, claims)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "u1@example.com", claims.Email)
	assert.Equal(t, "0xabc", claims.Wallet)
	assert.Equal(t, exp.Unix(), claims.ExpiresAt.Unix())

	enc := base64.RawURLEncoding.EncodeToString
	header := enc([]byte(`{"alg":"HS256","typ":"JWT"}`))

	for name, token := range map[string]string{
		"two segments":   header + "." + enc([]byte(`{"sub":"x"}`)),
		"four segments":  header + ".a.b.c",
		"bad base64":     header + ".!!!.sig",
		"payload json":   header + "." + enc([]byte("not json")) + ".sig",
		"empty":          "",
		"empty segments": "..",
	} {
		t.Run(name, func(t *testing.T) {
			assert.Nil(t, DecodeToken(token))
			assert.True(t, IsTokenExpired(token, exp.Add(-time.Hour)))
		})
	}

	unknownAlg := enc([]byte(`{"alg":"none-such"}`)) + "." + enc([]byte(`{"sub":"u2","exp":1700000000}`)) + ".sig"
	claims = DecodeToken(unknownAlg)
	require.NotNil(t, claims, "the payload is still readable")
	assert.Equal(t, "u2", claims.Subject)
}

func TestIsValidTokenFormat(t *testing.T) {
	assert.True(t, IsValidTokenFormat("a.b.c"))
	assert.False(t, IsValidTokenFormat("a.b"))
	assert.False(t, IsValidTokenFormat("a.b.c.d"))
	assert.False(t, IsValidTokenFormat("a..c"))
	assert.False(t, IsValidTokenFormat(""))
}

func TestVerifySignature(t *testing.T) {
	signer, err := eth.GenerateSigner()
	require.NoError(t, err)
	other, err := eth.GenerateSigner()
	require.NoError(t, err)

	message := "Welcome to Test App!\n\nNonce: 01"
	sig, err := signer.SignPersonal(message)
	require.NoError(t, err)

	address := signer.Address().Hex()
	assert.True(t, VerifySignature(sig, message, address))
	assert.Equal(t,
		VerifySignature(sig, message, strings.ToUpper(address)),
		VerifySignature(sig, message, strings.ToLower(address)))
	assert.True(t, VerifySignature(sig, message, strings.ToLower(address)))

	assert.False(t, VerifySignature(sig, message, other.Address().Hex()))
	assert.False(t, VerifySignature(sig, message+"x", address))
	assert.False(t, VerifySignature("", message, address))
	assert.False(t, VerifySignature("0xzz", message, address))
	assert.False(t, VerifySignature(sig, message, ""))
}
