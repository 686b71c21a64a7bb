package ports

import (
	"context"

	"github.com/layer-3/invoicegate/core"
)

// TokenStore persists the client's live token pair. A store may be shared by
// several session managers; only the manager performing login, refresh or
// logout writes to it.
type TokenStore interface {
	// Load returns an empty pair when nothing is stored
	Load(ctx context.Context) (core.TokenPair, error)
	Save(ctx context.Context, pair core.TokenPair) error
	Clear(ctx context.Context) error
}
