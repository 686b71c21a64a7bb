package eth

import (
	"crypto/ecdsa"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestPersonalSignHash(t *testing.T) {
	// keccak256("\x19Ethereum Signed Message:\n5hello")
	want := crypto.Keccak256([]byte("\x19Ethereum Signed Message:\n5hello"))
	assert.Equal(t, want, PersonalSignHash([]byte("hello")))
	assert.NotEqual(t, crypto.Keccak256([]byte("hello")), PersonalSignHash([]byte("hello")))
}

func TestVerifyPersonalSignature(t *testing.T) {
	signer, err := SignerFromHex(testKey)
	require.NoError(t, err)
	other, err := GenerateSigner()
	require.NoError(t, err)

	msg := "Welcome!\n\nNonce: abc"
	sig, err := signer.SignPersonal(msg)
	require.NoError(t, err)
	addr := signer.Address().Hex()

	t.Run("round trip", func(t *testing.T) {
		assert.True(t, VerifyPersonalSignature(sig, msg, addr))
	})

	t.Run("other address rejected", func(t *testing.T) {
		assert.False(t, VerifyPersonalSignature(sig, msg, other.Address().Hex()))
	})

	t.Run("case insensitive", func(t *testing.T) {
		lower := VerifyPersonalSignature(sig, msg, strings.ToLower(addr))
		upper := VerifyPersonalSignature(sig, msg, "0x"+strings.ToUpper(addr[2:]))
		assert.True(t, lower)
		assert.Equal(t, lower, upper)
	})

	t.Run("altered message rejected", func(t *testing.T) {
		assert.False(t, VerifyPersonalSignature(sig, msg+" ", addr))
	})

	t.Run("raw hash signature rejected", func(t *testing.T) {
		raw, err := crypto.Sign(crypto.Keccak256([]byte(msg)), mustKey(t))
		require.NoError(t, err)
		assert.False(t, VerifyPersonalSignature(hexutil.Encode(raw), msg, addr))
	})

	t.Run("recovery id 0/1 accepted", func(t *testing.T) {
		raw, err := crypto.Sign(PersonalSignHash([]byte(msg)), mustKey(t))
		require.NoError(t, err)
		assert.True(t, VerifyPersonalSignature(hexutil.Encode(raw), msg, addr))
	})

	t.Run("missing 0x prefix accepted", func(t *testing.T) {
		assert.True(t, VerifyPersonalSignature(strings.TrimPrefix(sig, "0x"), msg, addr))
	})
}

func TestVerifyPersonalSignature_MalformedInput(t *testing.T) {
	signer, err := SignerFromHex(testKey)
	require.NoError(t, err)
	addr := signer.Address().Hex()
	sig, err := signer.SignPersonal("hello")
	require.NoError(t, err)

	tests := []struct {
		name      string
		signature string
		message   string
		address   string
	}{
		{"empty signature", "", "hello", addr},
		{"empty message", sig, "", addr},
		{"empty address", sig, "hello", ""},
		{"not hex", "0xzz", "hello", addr},
		{"short signature", "0x1234", "hello", addr},
		{"bad recovery id", sig[:len(sig)-2] + "05", "hello", addr},
		{"malformed address", sig, "hello", "0x1234"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				assert.False(t, VerifyPersonalSignature(tt.signature, tt.message, tt.address))
			})
		})
	}
}

func TestIsAddress(t *testing.T) {
	assert.True(t, IsAddress("0x52908400098527886E0F7030069857D2E4169EE7"))
	assert.True(t, IsAddress("0x52908400098527886e0f7030069857d2e4169ee7"))
	assert.False(t, IsAddress("52908400098527886E0F7030069857D2E4169EE7"))
	assert.False(t, IsAddress("0x1234"))
	assert.False(t, IsAddress(""))
}

func mustKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.HexToECDSA(testKey)
	require.NoError(t, err)
	return key
}
