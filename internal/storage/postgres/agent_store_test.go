package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-curve-engine/internal/domain"
	"agent-curve-engine/internal/storage"
)

func TestAgentStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewAgentStore(pool)
	agent := testAgent("agent-1")

	require.NoError(t, store.Insert(ctx, agent))

	got, err := store.GetByID(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, agent.AgentID, got.AgentID)
	assert.Equal(t, agent.Creator, got.Creator)
	assert.Equal(t, agent.Name, got.Name)
	assert.Equal(t, agent.Symbol, got.Symbol)
	assert.InDelta(t, agent.Config.StartPrice, got.Config.StartPrice, 1e-12)
	assert.InDelta(t, agent.Config.EndPrice, got.Config.EndPrice, 1e-12)
	assert.InDelta(t, agent.Config.TradeableCap, got.Config.TradeableCap, 1e-6)
	assert.Equal(t, agent.Config.TradingFeeBps, got.Config.TradingFeeBps)
	assert.Equal(t, domain.PhaseActive, got.State.Phase)
	assert.Equal(t, int64(0), got.Version)

	// Duplicate insert.
	err = store.Insert(ctx, testAgent("agent-1"))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Missing agent.
	_, err = store.GetByID(ctx, "ghost")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAgentStore_UpdateState(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewAgentStore(pool)
	require.NoError(t, store.Insert(ctx, testAgent("agent-1")))

	newState := domain.CurveState{
		SharesSold:    1_000_000,
		ReserveRaised: 9_500,
		Phase:         domain.PhaseActive,
	}
	require.NoError(t, store.UpdateState(ctx, "agent-1", newState, 0))

	got, err := store.GetByID(ctx, "agent-1")
	require.NoError(t, err)
	assert.InDelta(t, 1_000_000, got.State.SharesSold, 1e-6)
	assert.InDelta(t, 9_500, got.State.ReserveRaised, 1e-6)
	assert.Equal(t, int64(1), got.Version)

	// Stale writer is rejected.
	err = store.UpdateState(ctx, "agent-1", newState, 0)
	assert.ErrorIs(t, err, storage.ErrVersionConflict)

	// Missing agent is distinguished from a stale version.
	err = store.UpdateState(ctx, "ghost", newState, 0)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAgentStore_ListByPhase(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewAgentStore(pool)

	a1 := testAgent("agent-1")
	a2 := testAgent("agent-2")
	a3 := testAgent("agent-3")
	a3.State.Phase = domain.PhaseGraduated
	for _, a := range []*domain.Agent{a1, a2, a3} {
		require.NoError(t, store.Insert(ctx, a))
	}

	active, err := store.ListByPhase(ctx, domain.PhaseActive)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "agent-1", active[0].AgentID)
	assert.Equal(t, "agent-2", active[1].AgentID)

	graduated, err := store.ListByPhase(ctx, domain.PhaseGraduated)
	require.NoError(t, err)
	require.Len(t, graduated, 1)
	assert.Equal(t, "agent-3", graduated[0].AgentID)
}
