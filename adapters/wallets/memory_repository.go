package wallets

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/invoicegate/core"
)

// MemoryRepository is an in-memory WalletRepository
type MemoryRepository struct {
	mu      sync.RWMutex
	wallets map[string]*core.UserWallet // keyed by ID
	seq     map[string]uint64           // insertion order
	next    uint64
	now     func() time.Time
}

// NewMemoryRepository creates an empty repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		wallets: make(map[string]*core.UserWallet),
		seq:     make(map[string]uint64),
		now:     time.Now,
	}
}

// Create inserts wallet, making it primary if it is the user's first
func (r *MemoryRepository) Create(ctx context.Context, wallet *core.UserWallet) (*core.UserWallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	address := core.NormalizeAddress(wallet.WalletAddress)
	network := core.NormalizeNetwork(wallet.Network)
	if existing := r.findLocked(address, network); existing != nil {
		return nil, core.ErrWalletConflict
	}

	now := r.now()
	w := *wallet
	if w.ID == "" {
		w.ID = uuid.New().String()
	}
	w.WalletAddress = address
	w.Network = network
	w.IsPrimary = len(r.byUserLocked(w.UserID)) == 0
	w.CreatedAt = now
	w.UpdatedAt = now
	r.wallets[w.ID] = &w
	r.next++
	r.seq[w.ID] = r.next

	out := w
	return &out, nil
}

// Update persists mutable fields of an existing wallet
func (r *MemoryRepository) Update(ctx context.Context, wallet *core.UserWallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.wallets[wallet.ID]
	if !ok || stored.UserID != wallet.UserID {
		return core.ErrWalletNotFound
	}
	stored.Label = wallet.Label
	stored.IsVerified = wallet.IsVerified
	stored.ConsentGiven = wallet.ConsentGiven
	stored.ConsentDate = wallet.ConsentDate
	stored.UpdatedAt = r.now()
	return nil
}

// FindByAddress returns the wallet linked as (address, network)
func (r *MemoryRepository) FindByAddress(ctx context.Context, address, network string) (*core.UserWallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	w := r.findLocked(core.NormalizeAddress(address), core.NormalizeNetwork(network))
	if w == nil {
		return nil, core.ErrWalletNotFound
	}
	out := *w
	return &out, nil
}

// FindOwner returns the user owning address on any network
func (r *MemoryRepository) FindOwner(ctx context.Context, address string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	address = core.NormalizeAddress(address)
	var owner *core.UserWallet
	for _, w := range r.wallets {
		if w.WalletAddress != address {
			continue
		}
		if owner == nil || (w.IsPrimary && !owner.IsPrimary) || (w.IsPrimary == owner.IsPrimary && r.seq[w.ID] < r.seq[owner.ID]) {
			owner = w
		}
	}
	if owner == nil {
		return "", core.ErrWalletNotFound
	}
	return owner.UserID, nil
}

// ListByUser returns the user's wallets, oldest first
func (r *MemoryRepository) ListByUser(ctx context.Context, userID string) ([]*core.UserWallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.byUserLocked(userID)
	out := make([]*core.UserWallet, 0, len(list))
	for _, w := range list {
		c := *w
		out = append(out, &c)
	}
	return out, nil
}

// SetPrimary promotes walletID and demotes the rest under one lock
func (r *MemoryRepository) SetPrimary(ctx context.Context, userID, walletID string) (*core.UserWallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.wallets[walletID]
	if !ok || target.UserID != userID {
		return nil, core.ErrWalletNotFound
	}

	now := r.now()
	for _, w := range r.byUserLocked(userID) {
		primary := w.ID == walletID
		if w.IsPrimary != primary {
			w.IsPrimary = primary
			w.UpdatedAt = now
		}
	}

	out := *target
	return &out, nil
}

// Delete removes walletID if owned by userID, promoting the oldest remaining
// wallet when the primary is removed
func (r *MemoryRepository) Delete(ctx context.Context, userID, walletID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.wallets[walletID]
	if !ok || target.UserID != userID {
		return core.ErrWalletNotFound
	}
	delete(r.wallets, walletID)
	delete(r.seq, walletID)

	if target.IsPrimary {
		if rest := r.byUserLocked(userID); len(rest) > 0 {
			rest[0].IsPrimary = true
			rest[0].UpdatedAt = r.now()
		}
	}
	return nil
}

func (r *MemoryRepository) findLocked(address, network string) *core.UserWallet {
	for _, w := range r.wallets {
		if w.WalletAddress == address && w.Network == network {
			return w
		}
	}
	return nil
}

func (r *MemoryRepository) byUserLocked(userID string) []*core.UserWallet {
	var list []*core.UserWallet
	for _, w := range r.wallets {
		if w.UserID == userID {
			list = append(list, w)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		return r.seq[list[i].ID] < r.seq[list[j].ID]
	})
	return list
}
