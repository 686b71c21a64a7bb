package core

import "time"

// Challenge represents a one-time message a wallet must sign to prove address ownership
type Challenge struct {
	ID            string     `json:"id"`            // Unique identifier for the challenge
	WalletAddress string     `json:"walletAddress"` // Lowercase 0x-prefixed address
	Message       string     `json:"message"`       // Exact payload the wallet signs
	Nonce         string     `json:"nonce"`         // 32 random bytes, hex encoded
	IssuedAt      time.Time  `json:"issuedAt"`      // When the challenge was created
	ExpiresAt     time.Time  `json:"expiresAt"`     // When the challenge expires
	IsUsed        bool       `json:"isUsed"`        // Flipped once, on first valid verification
	UsedAt        *time.Time `json:"usedAt,omitempty"`
}

// Consumable reports whether the challenge can still be consumed at now
func (c *Challenge) Consumable(now time.Time) bool {
	return !c.IsUsed && c.ExpiresAt.After(now)
}

// MarkUsed flips the challenge to used. Callers hold whatever lock makes this atomic.
func (c *Challenge) MarkUsed(now time.Time) {
	c.IsUsed = true
	c.UsedAt = &now
}

// Session represents an authenticated user session
type Session struct {
	ID            string    // Unique session identifier
	UserID        string    // Subject of the issued tokens
	Email         string    // Optional, empty for wallet-only accounts
	Role          string    // Authorization role carried in the access token
	WalletAddress string    // Wallet used to open the session, if any
	IssuedAt      time.Time // When the session was created
	RefreshExpiry time.Time // When the refresh capability expires
	AccessExpiry  time.Time // When the access capability expires
	RefreshID     string    // Unique identifier for the refresh token
}

// User returns the public user snapshot of the session
func (s *Session) User() *User {
	return &User{ID: s.UserID, Email: s.Email, Role: s.Role}
}

// User is the denormalized view of the token subject
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// TokenPair is the access/refresh pair owned by one authenticated session.
// It is always replaced wholesale.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Empty reports whether no access token is held
func (p TokenPair) Empty() bool {
	return p.AccessToken == ""
}

const (
	// RoleWallet is assigned to subjects authenticated by a wallet not yet linked to an account
	RoleWallet = "wallet"

	// RoleUser is the default role of registered accounts
	RoleUser = "user"
)
