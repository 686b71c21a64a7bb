package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/invoicegate/core"
	"github.com/layer-3/invoicegate/metrics"
	"github.com/layer-3/invoicegate/ports"
	"go.uber.org/zap"
)

// Tokens is the token pair issued for a session
type Tokens struct {
	AccessToken   string
	RefreshToken  string
	ExpiresIn     time.Duration // Lifetime of the access token
	User          *core.User
	WalletAddress string
}

// AuthService handles authentication business logic
type AuthService struct {
	tokenizer  ports.Tokenizer
	store      ports.Store
	challenges ports.ChallengeStore
	wallets    ports.WalletRepository
	eventPub   ports.EventPublisher

	options
}

// NewAuthService creates a new authentication service
func NewAuthService(
	tokenizer ports.Tokenizer,
	store ports.Store,
	challenges ports.ChallengeStore,
	wallets ports.WalletRepository,
	eventPub ports.EventPublisher,
	opts ...Option,
) *AuthService {
	return &AuthService{
		tokenizer:  tokenizer,
		store:      store,
		challenges: challenges,
		wallets:    wallets,
		eventPub:   eventPub,
		options:    newOptions(opts),
	}
}

// ChallengeTTL is the lifetime of issued challenges
func (s *AuthService) ChallengeTTL() time.Duration {
	return s.challengeTTL
}

// CreateChallenge generates and persists a new authentication challenge
func (s *AuthService) CreateChallenge(ctx context.Context, address string) (*core.Challenge, error) {
	address = core.NormalizeAddress(address)
	if address == "" {
		return nil, core.ErrInvalidAddress
	}

	// Generate random nonce
	nonceBytes := make([]byte, 32)
	if _, err := rand.Read(nonceBytes); err != nil {
		s.logger.Error("failed to generate nonce", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", core.ErrChallengeUnavailable, err)
	}
	nonce := hex.EncodeToString(nonceBytes)

	now := s.now()
	challenge := &core.Challenge{
		ID:            uuid.New().String(),
		WalletAddress: address,
		Message:       BuildChallengeMessage(s.appName, address, now, nonce),
		Nonce:         nonce,
		IssuedAt:      now,
		ExpiresAt:     now.Add(s.challengeTTL),
	}

	if err := s.challenges.Save(ctx, challenge); err != nil {
		s.logger.Error("failed to save challenge", zap.String("address", address), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", core.ErrChallengeUnavailable, err)
	}

	s.metrics.ChallengesIssued.Inc()
	return challenge, nil
}

// VerifyWallet consumes the challenge identified by (address, nonce), checks
// that message is its exact text and that signature was produced by address,
// then opens a session for the wallet's owner.
//
// Authentication failures are reported only as core.ErrInvalidChallenge or
// core.ErrInvalidSignature.
func (s *AuthService) VerifyWallet(ctx context.Context, address, signature, message, nonce string) (*Tokens, error) {
	address = core.NormalizeAddress(address)
	if address == "" {
		return nil, core.ErrInvalidAddress
	}
	if strings.TrimSpace(signature) == "" || message == "" || strings.TrimSpace(nonce) == "" {
		return nil, core.ErrInvalidInput
	}

	challenge, err := s.challenges.Consume(ctx, address, strings.TrimSpace(nonce))
	if err != nil {
		if errors.Is(err, core.ErrInvalidChallenge) {
			s.metrics.Verifications.WithLabelValues(metrics.OutcomeRejected).Inc()
			return nil, core.ErrInvalidChallenge
		}
		s.metrics.Verifications.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("failed to consume challenge: %w", err)
	}

	if challenge.Message != message {
		s.metrics.Verifications.WithLabelValues(metrics.OutcomeRejected).Inc()
		return nil, core.ErrInvalidChallenge
	}

	if !s.verifier.Verify(signature, message, address) {
		s.metrics.Verifications.WithLabelValues(metrics.OutcomeRejected).Inc()
		return nil, core.ErrInvalidSignature
	}

	userID, role, err := s.resolveSubject(ctx, address)
	if err != nil {
		s.metrics.Verifications.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, err
	}

	tokens, err := s.issue(&core.Session{
		UserID:        userID,
		Role:          role,
		WalletAddress: address,
	})
	if err != nil {
		s.metrics.Verifications.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, err
	}

	s.metrics.Verifications.WithLabelValues(metrics.OutcomeSuccess).Inc()
	s.logger.Info("wallet verified", zap.String("address", address), zap.String("subject", userID))
	return tokens, nil
}

// resolveSubject returns the account owning address, or the address itself
// when the wallet is not linked to any account
func (s *AuthService) resolveSubject(ctx context.Context, address string) (string, string, error) {
	if s.wallets == nil {
		return address, core.RoleWallet, nil
	}
	owner, err := s.wallets.FindOwner(ctx, address)
	switch {
	case err == nil:
		return owner, core.RoleUser, nil
	case errors.Is(err, core.ErrWalletNotFound):
		return address, core.RoleWallet, nil
	default:
		return "", "", fmt.Errorf("failed to resolve wallet owner: %w", err)
	}
}

// issue mints a fresh access/refresh pair carrying the identity of template
func (s *AuthService) issue(template *core.Session) (*Tokens, error) {
	now := s.now()
	session := &core.Session{
		ID:            uuid.New().String(),
		UserID:        template.UserID,
		Email:         template.Email,
		Role:          template.Role,
		WalletAddress: template.WalletAddress,
		IssuedAt:      now,
		RefreshExpiry: now.Add(s.refreshTTL),
		AccessExpiry:  now.Add(s.accessTTL),
		RefreshID:     uuid.New().String(),
	}

	accessToken, err := s.tokenizer.SessionToAccessToken(session)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	refreshToken, err := s.tokenizer.SessionToRefreshToken(session)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh token: %w", err)
	}

	return &Tokens{
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		ExpiresIn:     s.accessTTL,
		User:          session.User(),
		WalletAddress: session.WalletAddress,
	}, nil
}

// Refresh rotates the refresh token and issues new access and refresh tokens
func (s *AuthService) Refresh(ctx context.Context, refreshTokenStr string) (*Tokens, error) {
	tokens, err := s.refresh(ctx, refreshTokenStr)
	switch {
	case err == nil:
		s.metrics.Refreshes.WithLabelValues(metrics.OutcomeSuccess).Inc()
	case errors.Is(err, core.ErrInvalidToken), errors.Is(err, core.ErrTokenExpired), errors.Is(err, core.ErrTokenInvalidated):
		s.metrics.Refreshes.WithLabelValues(metrics.OutcomeRejected).Inc()
	default:
		s.metrics.Refreshes.WithLabelValues(metrics.OutcomeError).Inc()
	}
	return tokens, err
}

func (s *AuthService) refresh(ctx context.Context, refreshTokenStr string) (*Tokens, error) {
	// Parse and validate the refresh token
	session, err := s.tokenizer.RefreshTokenToSession(refreshTokenStr)
	if err != nil {
		return nil, fmt.Errorf("invalid refresh token: %w", err)
	}

	now := s.now()
	if !now.Before(session.RefreshExpiry) {
		return nil, core.ErrTokenExpired
	}

	invalidated, err := s.store.IsTokenInvalidated(ctx, session.RefreshID)
	if err != nil {
		return nil, fmt.Errorf("failed to check token invalidation: %w", err)
	}
	if invalidated {
		s.logger.Warn("invalidated refresh token presented",
			zap.String("subject", session.UserID),
			zap.String("refresh_id", session.RefreshID))
		return nil, core.ErrTokenInvalidated
	}

	// The invalidation record only needs to outlive the token itself
	if err := s.store.InvalidateToken(ctx, session.RefreshID, session.RefreshExpiry.Sub(now)); err != nil {
		return nil, fmt.Errorf("failed to invalidate old token: %w", err)
	}

	return s.issue(session)
}

// Logout invalidates a refresh token and notifies other instances
func (s *AuthService) Logout(ctx context.Context, refreshTokenStr string) error {
	session, err := s.tokenizer.RefreshTokenToSession(refreshTokenStr)
	if err != nil {
		return fmt.Errorf("invalid refresh token: %w", err)
	}

	// Expired tokens still get a short-lived record to absorb clock skew
	remaining := session.RefreshExpiry.Sub(s.now())
	if remaining <= 0 {
		remaining = time.Hour
	}

	if err := s.store.InvalidateToken(ctx, session.RefreshID, remaining); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}

	// The store is authoritative; a lost event only delays other instances
	if err := s.eventPub.PublishLogout(ctx, session.UserID, session.RefreshID); err != nil {
		s.logger.Warn("failed to publish logout event",
			zap.String("subject", session.UserID),
			zap.Error(err))
	}

	return nil
}

// ValidateAccessToken returns the session of a live, non-revoked access token
func (s *AuthService) ValidateAccessToken(ctx context.Context, accessToken string) (*core.Session, error) {
	session, err := s.tokenizer.AccessTokenToSession(accessToken)
	if err != nil {
		return nil, fmt.Errorf("invalid access token: %w", err)
	}

	if !s.now().Before(session.AccessExpiry) {
		return nil, core.ErrTokenExpired
	}

	// Revoking the refresh token revokes its access tokens too
	if session.RefreshID != "" {
		invalidated, err := s.store.IsTokenInvalidated(ctx, session.RefreshID)
		if err != nil {
			return nil, fmt.Errorf("failed to check token invalidation: %w", err)
		}
		if invalidated {
			return nil, core.ErrTokenInvalidated
		}
	}

	return session, nil
}

// RunChallengeSweeper purges expired challenges every interval until ctx is
// done. It returns immediately if the challenge store expires entries itself.
func (s *AuthService) RunChallengeSweeper(ctx context.Context, interval time.Duration) {
	sweeper, ok := s.challenges.(ports.ChallengeSweeper)
	if !ok || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sweeper.Sweep(ctx, s.now())
			if err != nil {
				s.logger.Warn("challenge sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				s.metrics.ChallengesSwept.Add(float64(n))
				s.logger.Debug("swept expired challenges", zap.Int("count", n))
			}
		}
	}
}
