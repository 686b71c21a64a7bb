// Package eth implements Ethereum personal-sign (EIP-191) signatures.
package eth

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the length of an [R || S || V] signature
const SignatureLength = crypto.SignatureLength

var (
	ErrEmptyInput         = errors.New("empty signature or message")
	ErrMalformedSignature = errors.New("malformed signature")
)

// PersonalSignHash returns keccak256("\x19Ethereum Signed Message:\n" + len(message) + message)
func PersonalSignHash(message []byte) []byte {
	return accounts.TextHash(message)
}

// DecodeSignature parses a hex signature (with or without 0x) and normalizes
// the recovery id to 0/1.
func DecodeSignature(signature string) ([]byte, error) {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return nil, ErrEmptyInput
	}
	if !strings.HasPrefix(signature, "0x") && !strings.HasPrefix(signature, "0X") {
		signature = "0x" + signature
	}
	sig, err := hexutil.Decode(strings.ToLower(signature[:2]) + signature[2:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	if len(sig) != SignatureLength {
		return nil, fmt.Errorf("%w: signature must be %d bytes", ErrMalformedSignature, SignatureLength)
	}

	// Wallets emit V as 27/28, SigToPub expects 0/1
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	if sig[crypto.RecoveryIDOffset] > 1 {
		return nil, fmt.Errorf("%w: invalid recovery id", ErrMalformedSignature)
	}
	return sig, nil
}

// RecoverAddress recovers the address that produced a personal-sign signature of message
func RecoverAddress(signature, message string) (common.Address, error) {
	if message == "" {
		return common.Address{}, ErrEmptyInput
	}
	sig, err := DecodeSignature(signature)
	if err != nil {
		return common.Address{}, err
	}

	pub, err := crypto.SigToPub(PersonalSignHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrMalformedSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifyPersonalSignature reports whether signature is claimedAddress's
// personal-sign signature of message. Address comparison ignores case.
// Malformed or empty input yields false.
func VerifyPersonalSignature(signature, message, claimedAddress string) bool {
	claimedAddress = strings.TrimSpace(claimedAddress)
	if !common.IsHexAddress(claimedAddress) {
		return false
	}
	recovered, err := RecoverAddress(signature, message)
	if err != nil {
		return false
	}
	return recovered == common.HexToAddress(claimedAddress)
}

// IsAddress reports whether s is a 0x-prefixed 20 byte hex address
func IsAddress(s string) bool {
	s = strings.TrimSpace(s)
	return len(s) == 42 && strings.HasPrefix(strings.ToLower(s), "0x") && common.IsHexAddress(s)
}

// Signer produces personal-sign signatures with a private key
type Signer struct {
	key *ecdsa.PrivateKey
}

// NewSigner wraps key
func NewSigner(key *ecdsa.PrivateKey) *Signer {
	return &Signer{key: key}
}

// GenerateSigner creates a signer with a fresh random key
func GenerateSigner() (*Signer, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return NewSigner(key), nil
}

// SignerFromHex loads a signer from a hex private key
func SignerFromHex(hexKey string) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return NewSigner(key), nil
}

// Address returns the checksummed address of the signer
func (s *Signer) Address() common.Address {
	return crypto.PubkeyToAddress(s.key.PublicKey)
}

// SignPersonal signs message the way wallet extensions answer personal_sign:
// 0x-prefixed hex with V = 27/28.
func (s *Signer) SignPersonal(message string) (string, error) {
	sig, err := crypto.Sign(PersonalSignHash([]byte(message)), s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign message: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}
