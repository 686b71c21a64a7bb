package wallets

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/layer-3/invoicegate/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func link(t *testing.T, r *MemoryRepository, userID, address, network string) *core.UserWallet {
	t.Helper()
	w, err := r.Create(context.Background(), &core.UserWallet{
		UserID:        userID,
		WalletAddress: address,
		Network:       network,
		IsVerified:    true,
		ConsentGiven:  true,
	})
	require.NoError(t, err)
	return w
}

func primaries(t *testing.T, r *MemoryRepository, userID string) []string {
	t.Helper()
	list, err := r.ListByUser(context.Background(), userID)
	require.NoError(t, err)
	var ids []string
	for _, w := range list {
		if w.IsPrimary {
			ids = append(ids, w.ID)
		}
	}
	return ids
}

func TestMemoryRepository_FirstWalletIsPrimary(t *testing.T) {
	r := NewMemoryRepository()
	w1 := link(t, r, "u1", "0xAAA", "ethereum")
	w2 := link(t, r, "u1", "0xbbb", "ethereum")

	assert.True(t, w1.IsPrimary)
	assert.False(t, w2.IsPrimary)
	assert.Equal(t, "0xaaa", w1.WalletAddress)
	assert.Equal(t, []string{w1.ID}, primaries(t, r, "u1"))
}

func TestMemoryRepository_Uniqueness(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	link(t, r, "u1", "0xaaa", "ethereum")

	_, err := r.Create(ctx, &core.UserWallet{UserID: "u2", WalletAddress: "0xAAA", Network: "Ethereum"})
	assert.ErrorIs(t, err, core.ErrWalletConflict)

	// Same address on another network is a separate natural key
	w, err := r.Create(ctx, &core.UserWallet{UserID: "u2", WalletAddress: "0xaaa", Network: "polygon"})
	require.NoError(t, err)
	assert.True(t, w.IsPrimary)

	owner, err := r.FindOwner(ctx, "0xAAA")
	require.NoError(t, err)
	assert.Equal(t, "u1", owner)
}

func TestMemoryRepository_SetPrimary(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	link(t, r, "u1", "0x1", "ethereum")
	w2 := link(t, r, "u1", "0x2", "ethereum")
	link(t, r, "u1", "0x3", "ethereum")

	got, err := r.SetPrimary(ctx, "u1", w2.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPrimary)
	assert.Equal(t, []string{w2.ID}, primaries(t, r, "u1"))

	_, err = r.SetPrimary(ctx, "intruder", w2.ID)
	assert.ErrorIs(t, err, core.ErrWalletNotFound)
}

func TestMemoryRepository_DeleteScopedToOwner(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	w1 := link(t, r, "u1", "0x1", "ethereum")
	w2 := link(t, r, "u1", "0x2", "ethereum")

	assert.ErrorIs(t, r.Delete(ctx, "u2", w1.ID), core.ErrWalletNotFound)

	require.NoError(t, r.Delete(ctx, "u1", w1.ID))
	assert.Equal(t, []string{w2.ID}, primaries(t, r, "u1"))

	_, err := r.FindByAddress(ctx, "0x1", "ethereum")
	assert.ErrorIs(t, err, core.ErrWalletNotFound)
}

func TestMemoryRepository_Update(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()
	w := link(t, r, "u1", "0x1", "ethereum")

	w.Label = "payouts"
	require.NoError(t, r.Update(ctx, w))
	got, err := r.FindByAddress(ctx, "0x1", "")
	require.NoError(t, err)
	assert.Equal(t, "payouts", got.Label)

	w.UserID = "u2"
	assert.ErrorIs(t, r.Update(ctx, w), core.ErrWalletNotFound)
}

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError(nil))
	assert.ErrorIs(t, mapError(pgx.ErrNoRows), core.ErrWalletNotFound)
	assert.ErrorIs(t, mapError(fmt.Errorf("insert: %w", &pgconn.PgError{Code: uniqueViolation})), core.ErrWalletConflict)

	other := errors.New("connection reset")
	err := mapError(other)
	assert.ErrorIs(t, err, other)
	assert.NotErrorIs(t, err, core.ErrWalletConflict)
}
