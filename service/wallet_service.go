package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/layer-3/invoicegate/core"
	"github.com/layer-3/invoicegate/internal/eth"
	"github.com/layer-3/invoicegate/metrics"
	"github.com/layer-3/invoicegate/ports"
	"go.uber.org/zap"
)

// LinkRequest asks to bind a wallet to an account
type LinkRequest struct {
	UserID       string
	Address      string
	Network      string
	Signature    string
	Message      string // Challenge message signed by the wallet
	Label        string
	ConsentGiven bool
}

// WalletService binds verified wallets to user accounts
type WalletService struct {
	wallets    ports.WalletRepository
	challenges ports.ChallengeStore
	eventPub   ports.EventPublisher

	options
}

// NewWalletService creates a new wallet link service
func NewWalletService(
	wallets ports.WalletRepository,
	challenges ports.ChallengeStore,
	eventPub ports.EventPublisher,
	opts ...Option,
) *WalletService {
	return &WalletService{
		wallets:    wallets,
		challenges: challenges,
		eventPub:   eventPub,
		options:    newOptions(opts),
	}
}

// LinkWallet binds req.Address on req.Network to req.UserID.
//
// The signature must verify against the address and the signed message must
// be a live challenge issued for that address; both failures are reported as
// core.ErrInvalidSignature. Linking an address owned by another user fails
// with core.ErrWalletConflict, re-linking one's own wallet returns it.
func (s *WalletService) LinkWallet(ctx context.Context, req LinkRequest) (*core.UserWallet, error) {
	if req.UserID == "" {
		return nil, core.ErrNotAuthenticated
	}
	if !req.ConsentGiven {
		return nil, core.ErrConsentRequired
	}
	address := core.NormalizeAddress(req.Address)
	if !eth.IsAddress(address) {
		return nil, core.ErrInvalidAddress
	}
	if strings.TrimSpace(req.Signature) == "" || req.Message == "" {
		return nil, core.ErrInvalidInput
	}
	network := core.NormalizeNetwork(req.Network)

	if err := s.checkProof(ctx, address, req.Signature, req.Message); err != nil {
		s.countLink(err)
		return nil, err
	}

	wallet, err := s.bind(ctx, req, address, network)
	s.countLink(err)
	if err != nil {
		return nil, err
	}

	if err := s.eventPub.PublishWalletLinked(ctx, wallet); err != nil {
		s.logger.Warn("failed to publish wallet linked event",
			zap.String("wallet_id", wallet.ID),
			zap.Error(err))
	}
	return wallet, nil
}

// checkProof verifies the signature first so a forged request cannot burn a
// live challenge, then consumes the challenge named by the message's nonce
func (s *WalletService) checkProof(ctx context.Context, address, signature, message string) error {
	if !s.verifier.Verify(signature, message, address) {
		return core.ErrInvalidSignature
	}

	nonce, ok := ParseChallengeNonce(message)
	if !ok {
		return core.ErrInvalidSignature
	}

	challenge, err := s.challenges.Consume(ctx, address, nonce)
	if err != nil {
		if errors.Is(err, core.ErrInvalidChallenge) {
			return core.ErrInvalidSignature
		}
		return fmt.Errorf("failed to consume challenge: %w", err)
	}
	if challenge.Message != message {
		return core.ErrInvalidSignature
	}
	return nil
}

func (s *WalletService) bind(ctx context.Context, req LinkRequest, address, network string) (*core.UserWallet, error) {
	now := s.now()

	existing, err := s.wallets.FindByAddress(ctx, address, network)
	switch {
	case err == nil:
		if existing.UserID != req.UserID {
			s.logger.Info("wallet link conflict",
				zap.String("address", address),
				zap.String("network", network))
			return nil, core.ErrWalletConflict
		}
		existing.IsVerified = true
		existing.ConsentGiven = true
		if existing.ConsentDate == nil {
			existing.ConsentDate = &now
		}
		if req.Label != "" {
			existing.Label = req.Label
		}
		if err := s.wallets.Update(ctx, existing); err != nil {
			return nil, fmt.Errorf("failed to update wallet: %w", err)
		}
		return s.wallets.FindByAddress(ctx, address, network)
	case !errors.Is(err, core.ErrWalletNotFound):
		return nil, fmt.Errorf("failed to look up wallet: %w", err)
	}

	wallet, err := s.wallets.Create(ctx, &core.UserWallet{
		UserID:        req.UserID,
		WalletAddress: address,
		Network:       network,
		Label:         req.Label,
		IsVerified:    true,
		ConsentGiven:  true,
		ConsentDate:   &now,
	})
	if err != nil {
		if errors.Is(err, core.ErrWalletConflict) {
			return nil, core.ErrWalletConflict
		}
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}

	s.logger.Info("wallet linked",
		zap.String("user_id", req.UserID),
		zap.String("address", address),
		zap.String("network", network),
		zap.Bool("primary", wallet.IsPrimary))
	return wallet, nil
}

func (s *WalletService) countLink(err error) {
	switch {
	case err == nil:
		s.metrics.WalletLinks.WithLabelValues(metrics.OutcomeSuccess).Inc()
	case errors.Is(err, core.ErrWalletConflict):
		s.metrics.WalletLinks.WithLabelValues(metrics.OutcomeConflict).Inc()
	case errors.Is(err, core.ErrInvalidSignature):
		s.metrics.WalletLinks.WithLabelValues(metrics.OutcomeRejected).Inc()
	default:
		s.metrics.WalletLinks.WithLabelValues(metrics.OutcomeError).Inc()
	}
}

// SetPrimary makes walletID the user's only primary wallet
func (s *WalletService) SetPrimary(ctx context.Context, userID, walletID string) (*core.UserWallet, error) {
	if userID == "" {
		return nil, core.ErrNotAuthenticated
	}
	if walletID == "" {
		return nil, core.ErrInvalidInput
	}
	return s.wallets.SetPrimary(ctx, userID, walletID)
}

// RemoveWallet unlinks walletID if it belongs to userID
func (s *WalletService) RemoveWallet(ctx context.Context, userID, walletID string) error {
	if userID == "" {
		return core.ErrNotAuthenticated
	}
	if walletID == "" {
		return core.ErrInvalidInput
	}
	if err := s.wallets.Delete(ctx, userID, walletID); err != nil {
		return err
	}
	s.logger.Info("wallet removed", zap.String("user_id", userID), zap.String("wallet_id", walletID))
	return nil
}

// ListWallets returns the user's wallets, oldest first
func (s *WalletService) ListWallets(ctx context.Context, userID string) ([]*core.UserWallet, error) {
	if userID == "" {
		return nil, core.ErrNotAuthenticated
	}
	return s.wallets.ListByUser(ctx, userID)
}

// IsWalletLinked reports whether address is linked to any account on network
func (s *WalletService) IsWalletLinked(ctx context.Context, address, network string) (bool, error) {
	_, err := s.wallets.FindByAddress(ctx, address, network)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, core.ErrWalletNotFound):
		return false, nil
	default:
		return false, err
	}
}
