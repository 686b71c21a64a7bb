package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/layer-3/invoicegate/core"
	"github.com/layer-3/invoicegate/ports"
)

const (
	// LogoutTopic carries LogoutEvent payloads
	LogoutTopic = "invoicegate.logout"

	// WalletLinkedTopic carries WalletLinkedEvent payloads
	WalletLinkedTopic = "invoicegate.wallet_linked"
)

// LogoutEvent represents a logout event
type LogoutEvent struct {
	Subject string `json:"subject"`
	TokenID string `json:"token_id"`
}

// WalletLinkedEvent is published after a wallet was bound to a user
type WalletLinkedEvent struct {
	WalletID      string `json:"wallet_id"`
	UserID        string `json:"user_id"`
	WalletAddress string `json:"wallet_address"`
	Network       string `json:"network"`
	IsPrimary     bool   `json:"is_primary"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// PublishLogout publishes a logout event
func (p *WatermillPublisher) PublishLogout(ctx context.Context, subject string, tokenID string) error {
	return p.publish(ctx, LogoutTopic, tokenID, LogoutEvent{
		Subject: subject,
		TokenID: tokenID,
	})
}

// PublishWalletLinked publishes a wallet-linked event
func (p *WatermillPublisher) PublishWalletLinked(ctx context.Context, wallet *core.UserWallet) error {
	return p.publish(ctx, WalletLinkedTopic, watermill.NewUUID(), WalletLinkedEvent{
		WalletID:      wallet.ID,
		UserID:        wallet.UserID,
		WalletAddress: wallet.WalletAddress,
		Network:       wallet.Network,
		IsPrimary:     wallet.IsPrimary,
	})
}

func (p *WatermillPublisher) publish(ctx context.Context, topic, id string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(id, payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// NopPublisher discards events
type NopPublisher struct{}

func (NopPublisher) PublishLogout(context.Context, string, string) error          { return nil }
func (NopPublisher) PublishWalletLinked(context.Context, *core.UserWallet) error { return nil }
