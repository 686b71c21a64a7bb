// Package invoicegate authenticates users of a Web3 invoicing app by their
// Ethereum wallets and keeps their sessions alive.
package invoicegate

import (
	"context"

	"github.com/layer-3/invoicegate/client"
)

// Client represents the public interface an application uses to manage its user's session
type Client interface {
	// CreateChallenge asks the server for a message for address to sign
	CreateChallenge(ctx context.Context, address string) (*client.Challenge, error)

	// VerifySignature reports locally whether address signed message
	VerifySignature(signature, message, address string) bool

	// AuthenticateWithWallet runs the full challenge, sign and verify flow
	AuthenticateWithWallet(ctx context.Context, address string) client.Result

	// Login signs in with email and password
	Login(ctx context.Context, creds client.Credentials) client.Result

	// Register creates an account and signs in
	Register(ctx context.Context, creds client.Credentials) client.Result

	// SocialLogin signs in with a social provider token
	SocialLogin(ctx context.Context, creds client.SocialCredentials) client.Result

	// GetSessionInfo returns a snapshot of the session
	GetSessionInfo() client.SessionInfo

	// RefreshToken rotates the token pair, reporting success
	RefreshToken(ctx context.Context) bool

	// AccessToken returns a live access token, refreshing first if needed
	AccessToken(ctx context.Context) (string, error)

	// Logout ends the session and revokes it on the server
	Logout(ctx context.Context)
}

var _ Client = (*client.SessionManager)(nil)
