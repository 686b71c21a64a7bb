package core

import (
	"strings"
	"time"
)

// DefaultNetwork is used when a link request does not name a network
const DefaultNetwork = "ethereum"

// UserWallet binds a verified wallet address to a user account
type UserWallet struct {
	ID            string     `json:"id"`
	UserID        string     `json:"userId"`
	WalletAddress string     `json:"walletAddress"`
	Network       string     `json:"network"`
	Label         string     `json:"label,omitempty"`
	IsPrimary     bool       `json:"isPrimary"`
	IsVerified    bool       `json:"isVerified"`
	ConsentGiven  bool       `json:"consentGiven"`
	ConsentDate   *time.Time `json:"consentDate,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// NormalizeAddress lowercases and trims a hex wallet address
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// NormalizeNetwork lowercases a network name, falling back to DefaultNetwork
func NormalizeNetwork(network string) string {
	n := strings.ToLower(strings.TrimSpace(network))
	if n == "" {
		return DefaultNetwork
	}
	return n
}
