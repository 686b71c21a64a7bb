package ports

import "github.com/layer-3/invoicegate/core"

// Tokenizer converts between sessions and signed tokens
type Tokenizer interface {
	SessionToAccessToken(session *core.Session) (string, error)
	AccessTokenToSession(token string) (*core.Session, error)
	SessionToRefreshToken(session *core.Session) (string, error)
	RefreshTokenToSession(token string) (*core.Session, error)
}

// SignatureVerifier checks that signature is a personal-sign signature of
// message by address
type SignatureVerifier interface {
	Verify(signature, message, address string) bool
}

// SignatureVerifierFunc adapts a function to SignatureVerifier
type SignatureVerifierFunc func(signature, message, address string) bool

// Verify calls f
func (f SignatureVerifierFunc) Verify(signature, message, address string) bool {
	return f(signature, message, address)
}
