package tokenizer

import "github.com/golang-jwt/jwt/v5"

// AccessClaims combines standard claims with access-specific ones
type AccessClaims struct {
	jwt.RegisteredClaims
	Email     string `json:"email,omitempty"`
	Role      string `json:"role,omitempty"`
	Wallet    string `json:"wallet,omitempty"`
	RefreshID string `json:"rid,omitempty"` // ID of the refresh token
}

// RefreshClaims carry what is needed to mint the next access token
type RefreshClaims struct {
	jwt.RegisteredClaims
	Email  string `json:"email,omitempty"`
	Role   string `json:"role,omitempty"`
	Wallet string `json:"wallet,omitempty"`
}
