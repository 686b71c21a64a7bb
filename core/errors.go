package core

import "errors"

var (
	ErrTokenExpired     = errors.New("token has expired")
	ErrTokenInvalidated = errors.New("token has been invalidated")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrInvalidToken     = errors.New("invalid token")

	// ErrInvalidChallenge covers unknown, used, expired and mismatched challenges alike
	ErrInvalidChallenge = errors.New("invalid or expired challenge")

	ErrChallengeUnavailable = errors.New("could not create challenge")
	ErrInvalidAddress       = errors.New("invalid wallet address")
	ErrInvalidInput         = errors.New("invalid input")

	ErrWalletConflict  = errors.New("wallet address is already linked to another account")
	ErrWalletNotFound  = errors.New("wallet not found")
	ErrConsentRequired = errors.New("consent is required before linking a wallet")

	ErrStoreOperationFailed = errors.New("store operation failed")
	ErrNotAuthenticated     = errors.New("not authenticated")
)
