package memory

import (
	"context"
	"errors"
	"testing"

	"agent-curve-engine/internal/domain"
	"agent-curve-engine/internal/storage"
)

func TestPayoutStore_InsertAndListByStatus(t *testing.T) {
	store := NewPayoutStore()
	ctx := context.Background()

	payouts := []*domain.FeePayout{
		{PayoutID: "p2", TradeID: "t1", AgentID: "agent1", Recipient: domain.PayoutPlatform, Amount: 200, Status: domain.PayoutPending, CreatedAt: 2000},
		{PayoutID: "p1", TradeID: "t1", AgentID: "agent1", Recipient: domain.PayoutCreator, Amount: 200, Status: domain.PayoutPending, CreatedAt: 1000},
		{PayoutID: "p3", TradeID: "t2", AgentID: "agent1", Recipient: domain.PayoutCreator, Amount: 100, Status: domain.PayoutCompleted, CreatedAt: 500},
	}
	for _, p := range payouts {
		if err := store.Insert(ctx, p); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	pending, err := store.ListByStatus(ctx, domain.PayoutPending)
	if err != nil {
		t.Fatalf("ListByStatus failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("len = %d, want 2", len(pending))
	}
	// Oldest first.
	if pending[0].PayoutID != "p1" || pending[1].PayoutID != "p2" {
		t.Errorf("order = %s, %s; want p1, p2", pending[0].PayoutID, pending[1].PayoutID)
	}
}

func TestPayoutStore_Update(t *testing.T) {
	store := NewPayoutStore()
	ctx := context.Background()

	p := &domain.FeePayout{PayoutID: "p1", TradeID: "t1", AgentID: "agent1", Status: domain.PayoutPending}
	if err := store.Insert(ctx, p); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	p.Status = domain.PayoutFailed
	p.Attempts = 1
	p.LastError = "connection refused"
	if err := store.Update(ctx, p); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	failed, err := store.ListByStatus(ctx, domain.PayoutFailed)
	if err != nil {
		t.Fatalf("ListByStatus failed: %v", err)
	}
	if len(failed) != 1 || failed[0].Attempts != 1 {
		t.Errorf("failed = %+v", failed)
	}
}

func TestPayoutStore_UpdateUnknown(t *testing.T) {
	store := NewPayoutStore()

	err := store.Update(context.Background(), &domain.FeePayout{PayoutID: "nope"})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
