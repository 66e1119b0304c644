package memory

import (
	"context"
	"errors"
	"testing"

	"agent-curve-engine/internal/domain"
	"agent-curve-engine/internal/storage"
)

func testEvent(agentID string) *domain.GraduationEvent {
	return &domain.GraduationEvent{
		EventID:           "event-" + agentID,
		AgentID:           agentID,
		ReserveAtEvent:    42_000,
		SharesSoldAtEvent: 200_000_000,
		HolderSnapshot: []domain.HolderSnapshot{
			{HolderID: "0xaaa", Balance: 150_000_000, Percentage: 75},
			{HolderID: "0xbbb", Balance: 50_000_000, Percentage: 25},
		},
		Status: domain.GraduationPending,
	}
}

func TestGraduationEventStore_InsertAndGet(t *testing.T) {
	store := NewGraduationEventStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testEvent("agent1")); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	got, err := store.GetByAgentID(ctx, "agent1")
	if err != nil {
		t.Fatalf("GetByAgentID failed: %v", err)
	}
	if got.Status != domain.GraduationPending {
		t.Errorf("Status = %s, want pending", got.Status)
	}
	if len(got.HolderSnapshot) != 2 {
		t.Errorf("snapshot len = %d, want 2", len(got.HolderSnapshot))
	}
}

func TestGraduationEventStore_OnePerAgent(t *testing.T) {
	store := NewGraduationEventStore()
	ctx := context.Background()

	if err := store.Insert(ctx, testEvent("agent1")); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	// A second event for the same agent must be refused even with a
	// different event ID.
	dup := testEvent("agent1")
	dup.EventID = "event-other"
	if err := store.Insert(ctx, dup); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestGraduationEventStore_Update(t *testing.T) {
	store := NewGraduationEventStore()
	ctx := context.Background()

	e := testEvent("agent1")
	if err := store.Insert(ctx, e); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	e.Status = domain.GraduationCompleted
	e.Attempts = 1
	if err := store.Update(ctx, e); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := store.GetByAgentID(ctx, "agent1")
	if err != nil {
		t.Fatalf("GetByAgentID failed: %v", err)
	}
	if got.Status != domain.GraduationCompleted || got.Attempts != 1 {
		t.Errorf("got status=%s attempts=%d", got.Status, got.Attempts)
	}
}

func TestGraduationEventStore_ListByStatus(t *testing.T) {
	store := NewGraduationEventStore()
	ctx := context.Background()

	a := testEvent("agent1")
	b := testEvent("agent2")
	b.Status = domain.GraduationCompleted
	if err := store.Insert(ctx, a); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, b); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	pending, err := store.ListByStatus(ctx, domain.GraduationPending)
	if err != nil {
		t.Fatalf("ListByStatus failed: %v", err)
	}
	if len(pending) != 1 || pending[0].AgentID != "agent1" {
		t.Errorf("pending = %+v, want just agent1", pending)
	}
}

func TestGraduationEventStore_SnapshotIsolation(t *testing.T) {
	store := NewGraduationEventStore()
	ctx := context.Background()

	e := testEvent("agent1")
	if err := store.Insert(ctx, e); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	// Mutating the caller's slice must not leak into the store.
	e.HolderSnapshot[0].Balance = 0

	got, err := store.GetByAgentID(ctx, "agent1")
	if err != nil {
		t.Fatalf("GetByAgentID failed: %v", err)
	}
	if got.HolderSnapshot[0].Balance != 150_000_000 {
		t.Errorf("stored snapshot mutated: %v", got.HolderSnapshot[0].Balance)
	}
}
