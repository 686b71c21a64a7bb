package ports

import (
	"context"

	"github.com/layer-3/invoicegate/core"
)

// EventPublisher publishes events to notify other instances
type EventPublisher interface {
	PublishLogout(ctx context.Context, subject string, tokenID string) error
	PublishWalletLinked(ctx context.Context, wallet *core.UserWallet) error
}

// SessionNotifier broadcasts token pair changes between session managers
// sharing one TokenStore (browser tabs, processes, desktop windows).
type SessionNotifier interface {
	Publish(ctx context.Context, event core.SessionEvent) error

	// Subscribe delivers events until ctx is cancelled, then closes the channel.
	Subscribe(ctx context.Context) (<-chan core.SessionEvent, error)
}
