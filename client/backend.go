package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/layer-3/invoicegate/core"
)

// Challenge is a signing challenge issued by the server
type Challenge struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Nonce     string    `json:"nonce"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// VerifyRequest submits a signed challenge
type VerifyRequest struct {
	WalletAddress string `json:"walletAddress"`
	Signature     string `json:"signature"`
	Message       string `json:"message"`
	Nonce         string `json:"nonce"`
}

// Credentials are passed through to the account backend
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

// SocialCredentials carry an identity provider token
type SocialCredentials struct {
	Provider string `json:"provider"`
	Token    string `json:"token"`
}

// Backend is the server the session manager talks to
type Backend interface {
	CreateChallenge(ctx context.Context, address string) (*Challenge, error)
	VerifyWallet(ctx context.Context, req VerifyRequest) (core.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (core.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error

	Login(ctx context.Context, creds Credentials) (core.TokenPair, error)
	Register(ctx context.Context, creds Credentials) (core.TokenPair, error)
	SocialLogin(ctx context.Context, creds SocialCredentials) (core.TokenPair, error)
}

// APIError is a non-2xx answer of the server
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// HTTPBackend talks to the invoicegate HTTP API
type HTTPBackend struct {
	baseURL string
	client  *http.Client
}

// NewHTTPBackend creates a backend for baseURL. A nil client uses a client with a 30s timeout.
func NewHTTPBackend(baseURL string, client *http.Client) *HTTPBackend {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

type tokenBody struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (b tokenBody) pair() (core.TokenPair, error) {
	if b.AccessToken == "" {
		return core.TokenPair{}, fmt.Errorf("%w: response carries no access token", core.ErrInvalidToken)
	}
	return core.TokenPair{AccessToken: b.AccessToken, RefreshToken: b.RefreshToken}, nil
}

// CreateChallenge requests a challenge for address
func (b *HTTPBackend) CreateChallenge(ctx context.Context, address string) (*Challenge, error) {
	var resp struct {
		Challenge *Challenge `json:"challenge"`
	}
	if err := b.post(ctx, "/challenge", map[string]string{"walletAddress": address}, &resp); err != nil {
		return nil, err
	}
	if resp.Challenge == nil || resp.Challenge.Message == "" {
		return nil, core.ErrChallengeUnavailable
	}
	return resp.Challenge, nil
}

// VerifyWallet submits a signed challenge and returns the issued session
func (b *HTTPBackend) VerifyWallet(ctx context.Context, req VerifyRequest) (core.TokenPair, error) {
	var resp struct {
		Verified bool       `json:"verified"`
		Session  *tokenBody `json:"session"`
	}
	if err := b.post(ctx, "/verify", req, &resp); err != nil {
		return core.TokenPair{}, err
	}
	if !resp.Verified || resp.Session == nil {
		return core.TokenPair{}, core.ErrInvalidSignature
	}
	return resp.Session.pair()
}

// Refresh exchanges refreshToken for a new pair
func (b *HTTPBackend) Refresh(ctx context.Context, refreshToken string) (core.TokenPair, error) {
	var resp tokenBody
	if err := b.post(ctx, "/auth/refresh", map[string]string{"refreshToken": refreshToken}, &resp); err != nil {
		return core.TokenPair{}, err
	}
	return resp.pair()
}

// Logout revokes refreshToken on the server
func (b *HTTPBackend) Logout(ctx context.Context, refreshToken string) error {
	return b.post(ctx, "/auth/logout", map[string]string{"refreshToken": refreshToken}, nil)
}

// Login signs in with email and password
func (b *HTTPBackend) Login(ctx context.Context, creds Credentials) (core.TokenPair, error) {
	return b.tokens(ctx, "/auth/login", creds)
}

// Register creates an account and signs in
func (b *HTTPBackend) Register(ctx context.Context, creds Credentials) (core.TokenPair, error) {
	return b.tokens(ctx, "/auth/register", creds)
}

// SocialLogin signs in with an identity provider token
func (b *HTTPBackend) SocialLogin(ctx context.Context, creds SocialCredentials) (core.TokenPair, error) {
	return b.tokens(ctx, "/auth/social", creds)
}

func (b *HTTPBackend) tokens(ctx context.Context, path string, body interface{}) (core.TokenPair, error) {
	var resp tokenBody
	if err := b.post(ctx, path, body, &resp); err != nil {
		return core.TokenPair{}, err
	}
	return resp.pair()
}

func (b *HTTPBackend) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var failure struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(raw, &failure); err != nil || failure.Message == "" {
			failure.Message = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: failure.Message}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// messageFor turns any backend failure into a message fit for the user
func messageFor(err error) string {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Message
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "request cancelled"
	case errors.Is(err, core.ErrInvalidSignature):
		return core.ErrInvalidSignature.Error()
	case errors.Is(err, core.ErrInvalidToken):
		return "received an invalid session"
	case errors.Is(err, core.ErrChallengeUnavailable):
		return core.ErrChallengeUnavailable.Error()
	default:
		return "network error, please try again"
	}
}
