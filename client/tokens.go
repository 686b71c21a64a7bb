// Package client keeps a wallet-authenticated session alive on the caller's
// side of the API.
//
// Tokens are decoded here without verifying their signature. Decoded claims
// only schedule refreshes and fill in the displayed user; every authorization
// decision is made by the server on each request.
package client

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/invoicegate/internal/eth"
)

// RefreshBuffer is how long before expiry a token is proactively refreshed
const RefreshBuffer = 5 * time.Minute

// Claims are the access token claims as seen by the client
type Claims struct {
	jwt.RegisteredClaims
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	Wallet string `json:"wallet,omitempty"`
}

var unverifiedParser = jwt.NewParser()

// DecodeToken returns the token's claims, or nil if the token is not a
// structurally valid JWT. The signature is not checked.
func DecodeToken(token string) *Claims {
	if !IsValidTokenFormat(token) {
		return nil
	}
	claims := &Claims{}
	_, _, err := unverifiedParser.ParseUnverified(token, claims)
	// An unknown alg still leaves a decoded payload
	if err != nil && !errors.Is(err, jwt.ErrTokenUnverifiable) {
		return nil
	}
	return claims
}

// IsTokenExpired reports whether token's exp is at or before now.
// Undecodable tokens and tokens without exp count as expired.
func IsTokenExpired(token string, now time.Time) bool {
	claims := DecodeToken(token)
	if claims == nil || claims.ExpiresAt == nil {
		return true
	}
	return claims.ExpiresAt.Unix() <= now.Unix()
}

// ShouldRefreshToken reports whether token expires within RefreshBuffer of now
func ShouldRefreshToken(token string, now time.Time) bool {
	claims := DecodeToken(token)
	if claims == nil || claims.ExpiresAt == nil {
		return true
	}
	return claims.ExpiresAt.Unix()*1000-now.UnixMilli() <= RefreshBuffer.Milliseconds()
}

// IsValidTokenFormat reports whether token has exactly three non-empty dot separated segments
func IsValidTokenFormat(token string) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return true
}

// tokenExpiry returns the exp claim in unix seconds, or 0
func tokenExpiry(claims *Claims) int64 {
	if claims == nil || claims.ExpiresAt == nil {
		return 0
	}
	return claims.ExpiresAt.Unix()
}

// VerifySignature reports whether signature is address's personal-sign
// signature of message. It never panics and ignores address case.
func VerifySignature(signature, message, address string) bool {
	return eth.VerifyPersonalSignature(signature, message, address)
}
