// Package graduation moves agents off the curve once the reserve threshold
// is met. Graduation is a one-way door: active -> graduating -> graduated,
// never backward. The holder snapshot is persisted with status pending
// before the phase flip so a crash in between is recoverable by re-running.
package graduation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"agent-curve-engine/internal/curve"
	"agent-curve-engine/internal/domain"
	"agent-curve-engine/internal/idhash"
	"agent-curve-engine/internal/locking"
	"agent-curve-engine/internal/observability"
	"agent-curve-engine/internal/storage"
)

// Handoff hands a graduation event to the downstream liquidity migration.
// A nil Handoff means no downstream step is modeled and graduation completes
// immediately. Handoff failures never roll back the phase flip; they are
// recorded on the event and retried by the reconciler.
type Handoff func(ctx context.Context, event *domain.GraduationEvent) error

// CheckResult reports an agent's graduation eligibility.
type CheckResult struct {
	Eligible      bool
	ReserveRaised float64
	Threshold     float64
	Remaining     float64
}

// StatusResult reports an agent's graduation state.
type StatusResult struct {
	Phase       domain.Phase
	IsGraduated bool
	Event       *domain.GraduationEvent // nil if graduation never started
}

// Result is the outcome of a graduate call.
type Result struct {
	Event       *domain.GraduationEvent
	Phase       domain.Phase
	HolderCount int
}

// Manager is the graduation state machine.
type Manager struct {
	agents    storage.AgentStore
	positions storage.PositionStore
	events    storage.GraduationEventStore
	handoff   Handoff
	completed func(*domain.GraduationEvent)
	metrics   *observability.Metrics
	logger    *log.Logger
	locks     *locking.KeyedMutex
}

// Options contains configuration for creating a Manager.
type Options struct {
	Agents    storage.AgentStore
	Positions storage.PositionStore
	Events    storage.GraduationEventStore
	Handoff   Handoff // optional

	// OnCompleted is invoked after a graduation reaches completed, e.g. for
	// websocket push. Must not block. Optional.
	OnCompleted func(*domain.GraduationEvent)

	// Locks is the per-agent mutex set. Share one instance with the trade
	// executor so a trade cannot commit between this manager's state read
	// and its phase flip. A nil Locks gets a private set.
	Locks *locking.KeyedMutex

	Metrics *observability.Metrics // optional
	Logger  *log.Logger            // optional
}

// NewManager creates a graduation manager.
func NewManager(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	locks := opts.Locks
	if locks == nil {
		locks = locking.NewKeyedMutex()
	}
	return &Manager{
		agents:    opts.Agents,
		positions: opts.Positions,
		events:    opts.Events,
		handoff:   opts.Handoff,
		completed: opts.OnCompleted,
		metrics:   opts.Metrics,
		logger:    logger,
		locks:     locks,
	}
}

// Check reports eligibility. Read-only.
func (m *Manager) Check(ctx context.Context, agentID string) (*CheckResult, error) {
	agent, err := m.agents.GetByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	threshold := agent.Config.GraduationReserve
	remaining := threshold - agent.State.ReserveRaised
	if remaining < 0 {
		remaining = 0
	}
	return &CheckResult{
		Eligible:      curve.CanGraduate(agent.Config, agent.State),
		ReserveRaised: agent.State.ReserveRaised,
		Threshold:     threshold,
		Remaining:     remaining,
	}, nil
}

// Status returns the agent's phase and its graduation event, if any.
// Read-only, idempotent.
func (m *Manager) Status(ctx context.Context, agentID string) (*StatusResult, error) {
	agent, err := m.agents.GetByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	result := &StatusResult{
		Phase:       agent.State.Phase,
		IsGraduated: agent.State.Phase == domain.PhaseGraduated,
	}
	event, err := m.events.GetByAgentID(ctx, agentID)
	if err == nil {
		result.Event = event
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	return result, nil
}

// Graduate takes an eligible agent off the curve:
//
//  1. Reject unless phase is active and the reserve threshold is met.
//  2. Snapshot every position with a positive balance.
//  3. Persist the event with status pending, BEFORE the phase flip. A
//     crash or version conflict between the two is recovered by re-running:
//     the deterministic event ID makes the insert collide instead of
//     duplicating, and the pending snapshot is redone at the current state
//     since trades may have committed in the gap.
//  4. Flip the phase to graduating under the optimistic version check. This
//     permanently halts curve trading.
//  5. Hand off downstream. Success moves the event to completed and the
//     phase to graduated; failure is recorded for retry and does not roll
//     anything back.
func (m *Manager) Graduate(ctx context.Context, agentID string) (*Result, error) {
	unlock := m.acquire(agentID)
	defer unlock()

	agent, err := m.agents.GetByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if agent.State.Phase != domain.PhaseActive {
		return nil, domain.ErrAlreadyGraduated
	}
	if !curve.CanGraduate(agent.Config, agent.State) {
		return nil, domain.ErrNotEligible
	}

	event, err := m.snapshotEvent(ctx, agent)
	if err != nil {
		return nil, err
	}

	flipped := agent.State
	flipped.Phase = domain.PhaseGraduating
	if err := m.agents.UpdateState(ctx, agentID, flipped, agent.Version); err != nil {
		// A trade slipped in between the read and the flip. The reserve
		// only grows, so eligibility holds; the caller retries.
		return nil, err
	}
	m.logger.Printf("agent %s graduating: reserve=%.2f holders=%d", agentID, event.ReserveAtEvent, len(event.HolderSnapshot))

	if err := m.runHandoff(ctx, event); err != nil {
		m.logger.Printf("graduation handoff failed for agent %s: %v", agentID, err)
	}
	// Re-read: runHandoff may have advanced the phase.
	agent, err = m.agents.GetByID(ctx, agentID)
	if err != nil {
		return nil, err
	}
	return &Result{Event: event, Phase: agent.State.Phase, HolderCount: len(event.HolderSnapshot)}, nil
}

// Finalize re-drives a started graduation to completion: it flips an agent
// stuck in active (crash after snapshot, before flip), re-runs a pending or
// failed handoff, and marks the terminal state. Idempotent; safe to call
// from the reconciler and from retries.
func (m *Manager) Finalize(ctx context.Context, agentID string) error {
	unlock := m.acquire(agentID)
	defer unlock()

	event, err := m.events.GetByAgentID(ctx, agentID)
	if err != nil {
		return err
	}
	if event.Status == domain.GraduationCompleted {
		return nil
	}

	agent, err := m.agents.GetByID(ctx, agentID)
	if err != nil {
		return err
	}
	if agent.State.Phase == domain.PhaseActive {
		// Crash between snapshot and flip. Trading continued in the
		// meantime, so redo the snapshot at the current state before
		// halting the curve.
		snapshot, err := m.buildSnapshot(ctx, agent)
		if err != nil {
			return err
		}
		event.ReserveAtEvent = agent.State.ReserveRaised
		event.SharesSoldAtEvent = agent.State.SharesSold
		event.HolderSnapshot = snapshot
		event.UpdatedAt = time.Now().UnixMilli()
		if err := m.events.Update(ctx, event); err != nil {
			return err
		}

		flipped := agent.State
		flipped.Phase = domain.PhaseGraduating
		if err := m.agents.UpdateState(ctx, agentID, flipped, agent.Version); err != nil {
			return err
		}
	}
	return m.runHandoff(ctx, event)
}

// snapshotEvent builds and persists the pending event. A re-run against an
// existing pending event re-snapshots it: the agent was still active, so
// trades may have moved positions since the stored snapshot was taken.
func (m *Manager) snapshotEvent(ctx context.Context, agent *domain.Agent) (*domain.GraduationEvent, error) {
	snapshot, err := m.buildSnapshot(ctx, agent)
	if err != nil {
		return nil, err
	}

	now := time.Now().UnixMilli()
	event := &domain.GraduationEvent{
		EventID:           idhash.ComputeGraduationEventID(agent.AgentID),
		AgentID:           agent.AgentID,
		ReserveAtEvent:    agent.State.ReserveRaised,
		SharesSoldAtEvent: agent.State.SharesSold,
		HolderSnapshot:    snapshot,
		Status:            domain.GraduationPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := m.events.Insert(ctx, event); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			stored, gerr := m.events.GetByAgentID(ctx, agent.AgentID)
			if gerr != nil {
				return nil, gerr
			}
			if stored.Status != domain.GraduationPending {
				// Flipped and handed off already; the stored snapshot is the
				// one taken at flip time.
				return stored, nil
			}
			stored.ReserveAtEvent = agent.State.ReserveRaised
			stored.SharesSoldAtEvent = agent.State.SharesSold
			stored.HolderSnapshot = snapshot
			stored.UpdatedAt = now
			if uerr := m.events.Update(ctx, stored); uerr != nil {
				return nil, uerr
			}
			return stored, nil
		}
		return nil, err
	}
	if m.metrics != nil {
		m.metrics.HoldersSnapshotted.Add(float64(len(snapshot)))
	}
	return event, nil
}

// buildSnapshot lists every position with a positive balance at the agent's
// current state. Only meaningful while the phase still admits trades.
func (m *Manager) buildSnapshot(ctx context.Context, agent *domain.Agent) ([]domain.HolderSnapshot, error) {
	positions, err := m.positions.ListByAgent(ctx, agent.AgentID)
	if err != nil {
		return nil, err
	}
	var snapshot []domain.HolderSnapshot
	for _, p := range positions {
		if p.TokenBalance <= 0 {
			continue
		}
		pct := 0.0
		if agent.State.SharesSold > 0 {
			pct = p.TokenBalance / agent.State.SharesSold * 100
		}
		snapshot = append(snapshot, domain.HolderSnapshot{
			HolderID:   p.HolderID,
			Balance:    p.TokenBalance,
			Percentage: pct,
		})
	}
	return snapshot, nil
}

// runHandoff drives one handoff attempt and records the outcome on the
// event. Success also moves the phase graduating -> graduated.
func (m *Manager) runHandoff(ctx context.Context, event *domain.GraduationEvent) error {
	if m.handoff != nil {
		event.Attempts++
		if err := m.handoff(ctx, event); err != nil {
			event.Status = domain.GraduationFailed
			event.UpdatedAt = time.Now().UnixMilli()
			if uerr := m.events.Update(ctx, event); uerr != nil {
				m.logger.Printf("record handoff failure for agent %s: %v", event.AgentID, uerr)
			}
			if m.metrics != nil {
				m.metrics.GraduationsTotal.WithLabelValues("failed").Inc()
			}
			return fmt.Errorf("%w: %v", domain.ErrDownstream, err)
		}
	}

	event.Status = domain.GraduationCompleted
	event.UpdatedAt = time.Now().UnixMilli()
	if err := m.events.Update(ctx, event); err != nil {
		return err
	}
	if err := m.markGraduated(ctx, event.AgentID); err != nil {
		return err
	}
	if m.metrics != nil {
		m.metrics.GraduationsTotal.WithLabelValues("completed").Inc()
	}
	if m.completed != nil {
		m.completed(event)
	}
	return nil
}

func (m *Manager) markGraduated(ctx context.Context, agentID string) error {
	agent, err := m.agents.GetByID(ctx, agentID)
	if err != nil {
		return err
	}
	if agent.State.Phase == domain.PhaseGraduated {
		return nil
	}
	done := agent.State
	done.Phase = domain.PhaseGraduated
	return m.agents.UpdateState(ctx, agentID, done, agent.Version)
}

func (m *Manager) acquire(agentID string) func() {
	return m.locks.Acquire(agentID)
}
