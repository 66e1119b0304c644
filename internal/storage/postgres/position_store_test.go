package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-curve-engine/internal/domain"
	"agent-curve-engine/internal/storage"
)

func TestPositionStore_UpsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, NewAgentStore(pool).Insert(ctx, testAgent("agent-1")))
	store := NewPositionStore(pool)

	_, err := store.Get(ctx, "agent-1", "0xaaaa")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	pos := &domain.Position{
		AgentID:      "agent-1",
		HolderID:     "0xaaaa",
		TokenBalance: 1_000_000,
		UpdatedAt:    time.Now().UnixMilli(),
	}
	require.NoError(t, store.Upsert(ctx, pos))

	got, err := store.Get(ctx, "agent-1", "0xaaaa")
	require.NoError(t, err)
	assert.InDelta(t, 1_000_000, got.TokenBalance, 1e-6)

	// Upsert replaces; a zero balance stays queryable.
	pos.TokenBalance = 0
	require.NoError(t, store.Upsert(ctx, pos))

	got, err = store.Get(ctx, "agent-1", "0xaaaa")
	require.NoError(t, err)
	assert.InDelta(t, 0, got.TokenBalance, 1e-9)
}

func TestPositionStore_ListByAgent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, NewAgentStore(pool).Insert(ctx, testAgent("agent-1")))
	store := NewPositionStore(pool)

	now := time.Now().UnixMilli()
	for _, p := range []*domain.Position{
		{AgentID: "agent-1", HolderID: "0xbbbb", TokenBalance: 200, UpdatedAt: now},
		{AgentID: "agent-1", HolderID: "0xaaaa", TokenBalance: 100, UpdatedAt: now},
	} {
		require.NoError(t, store.Upsert(ctx, p))
	}

	positions, err := store.ListByAgent(ctx, "agent-1")
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.Equal(t, "0xaaaa", positions[0].HolderID)
	assert.Equal(t, "0xbbbb", positions[1].HolderID)
}
