package tokenstore

import (
	"context"
	"testing"

	"github.com/layer-3/invoicegate/core"
	"github.com/layer-3/invoicegate/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.TokenStore = (*MemoryStore)(nil)
var _ ports.TokenStore = (*RedisStore)(nil)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	pair, err := s.Load(ctx)
	require.NoError(t, err)
	assert.True(t, pair.Empty())

	want := core.TokenPair{AccessToken: "a.b.c", RefreshToken: "d.e.f"}
	require.NoError(t, s.Save(ctx, want))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	replacement := core.TokenPair{AccessToken: "g.h.i"}
	require.NoError(t, s.Save(ctx, replacement))
	got, _ = s.Load(ctx)
	assert.Equal(t, replacement, got, "pair is replaced wholesale")

	require.NoError(t, s.Clear(ctx))
	got, _ = s.Load(ctx)
	assert.True(t, got.Empty())
}

func TestDecodePair(t *testing.T) {
	pair, err := decodePair(`{"accessToken":"a.b.c","refreshToken":"d.e.f"}`)
	require.NoError(t, err)
	assert.Equal(t, core.TokenPair{AccessToken: "a.b.c", RefreshToken: "d.e.f"}, pair)

	_, err = decodePair("{")
	assert.Error(t, err)
}
