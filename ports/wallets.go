package ports

import (
	"context"

	"github.com/layer-3/invoicegate/core"
)

// WalletRepository stores user wallets.
//
// Implementations keep (WalletAddress, Network) unique across users and keep
// exactly one primary wallet per user that has any wallet.
type WalletRepository interface {
	// Create inserts the wallet. It becomes primary when it is the user's first.
	// Returns core.ErrWalletConflict if the address is linked on that network.
	Create(ctx context.Context, wallet *core.UserWallet) (*core.UserWallet, error)

	// Update persists label/verification/consent changes of an existing wallet
	Update(ctx context.Context, wallet *core.UserWallet) error

	FindByAddress(ctx context.Context, address, network string) (*core.UserWallet, error)

	// FindOwner returns the user owning address on any network, primary links first
	FindOwner(ctx context.Context, address string) (string, error)

	ListByUser(ctx context.Context, userID string) ([]*core.UserWallet, error)

	// SetPrimary promotes walletID and demotes every other wallet of userID in one step
	SetPrimary(ctx context.Context, userID, walletID string) (*core.UserWallet, error)

	// Delete removes walletID only if it belongs to userID
	Delete(ctx context.Context, userID, walletID string) error
}
