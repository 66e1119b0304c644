package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-curve-engine/internal/domain"
	"agent-curve-engine/internal/graduation"
	"agent-curve-engine/internal/storage/memory"
)

type fakeDelivery struct {
	calls int
	err   error
}

func (d *fakeDelivery) Deliver(_ context.Context, _ *domain.FeePayout) error {
	d.calls++
	return d.err
}

func seedPayout(t *testing.T, store *memory.PayoutStore, id, status string, attempts int) {
	t.Helper()
	err := store.Insert(context.Background(), &domain.FeePayout{
		PayoutID:  id,
		TradeID:   "trade1",
		AgentID:   "agent1",
		Recipient: domain.PayoutCreator,
		Address:   "0x1111111111111111111111111111111111111111",
		Amount:    200,
		Status:    status,
		Attempts:  attempts,
	})
	require.NoError(t, err)
}

func TestSweep_DeliversPendingPayouts(t *testing.T) {
	payouts := memory.NewPayoutStore()
	seedPayout(t, payouts, "p1", domain.PayoutPending, 0)
	seedPayout(t, payouts, "p2", domain.PayoutFailed, 2)

	delivery := &fakeDelivery{}
	s := NewSweeper(Options{Payouts: payouts, Delivery: delivery})
	s.Sweep(context.Background())

	assert.Equal(t, 2, delivery.calls)
	completed, err := payouts.ListByStatus(context.Background(), domain.PayoutCompleted)
	require.NoError(t, err)
	assert.Len(t, completed, 2)
	for _, p := range completed {
		assert.Empty(t, p.LastError)
	}
}

func TestSweep_RetryThenAbandon(t *testing.T) {
	payouts := memory.NewPayoutStore()
	seedPayout(t, payouts, "p1", domain.PayoutPending, 0)

	delivery := &fakeDelivery{err: errors.New("rail unavailable")}
	s := NewSweeper(Options{Payouts: payouts, Delivery: delivery, MaxPayoutAttempts: 3})
	ctx := context.Background()

	// Three failing sweeps exhaust the retry limit.
	for range 3 {
		s.Sweep(ctx)
	}

	abandoned, err := payouts.ListByStatus(ctx, domain.PayoutAbandoned)
	require.NoError(t, err)
	require.Len(t, abandoned, 1)
	assert.Equal(t, 3, abandoned[0].Attempts)
	assert.Equal(t, "rail unavailable", abandoned[0].LastError)

	// Abandoned payouts are dead.
	s.Sweep(ctx)
	assert.Equal(t, 3, delivery.calls)
}

func TestSweep_FinalizesStalledGraduation(t *testing.T) {
	agents := memory.NewAgentStore()
	positions := memory.NewPositionStore()
	events := memory.NewGraduationEventStore()
	ctx := context.Background()

	require.NoError(t, agents.Insert(ctx, &domain.Agent{
		AgentID: "agent1",
		Creator: "0x1111111111111111111111111111111111111111",
		Config: domain.CurveConfig{
			StartPrice:        0.00004,
			EndPrice:          0.0003,
			TradeableCap:      248_000_000,
			GraduationReserve: 42_000,
			TradingFeeBps:     500,
			CreatorShareBps:   4000,
			PlatformShareBps:  4000,
		},
		State: domain.CurveState{
			SharesSold:    200_000_000,
			ReserveRaised: 42_500,
			Phase:         domain.PhaseGraduating,
		},
	}))
	require.NoError(t, events.Insert(ctx, &domain.GraduationEvent{
		EventID: "ev1", AgentID: "agent1",
		ReserveAtEvent: 42_500, SharesSoldAtEvent: 200_000_000,
		Status: domain.GraduationFailed, Attempts: 1,
	}))

	mgr := graduation.NewManager(graduation.Options{
		Agents: agents, Positions: positions, Events: events,
	})
	s := NewSweeper(Options{Events: events, Graduations: mgr})
	s.Sweep(ctx)

	event, err := events.GetByAgentID(ctx, "agent1")
	require.NoError(t, err)
	assert.Equal(t, domain.GraduationCompleted, event.Status)

	agent, err := agents.GetByID(ctx, "agent1")
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseGraduated, agent.State.Phase)
}

func TestSweep_NoDeliveryConfigured(t *testing.T) {
	payouts := memory.NewPayoutStore()
	seedPayout(t, payouts, "p1", domain.PayoutPending, 0)

	s := NewSweeper(Options{Payouts: payouts})
	s.Sweep(context.Background())

	pending, err := payouts.ListByStatus(context.Background(), domain.PayoutPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
