package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"agent-curve-engine/internal/domain"
	"agent-curve-engine/internal/storage"
)

// AgentStore is an in-memory implementation of storage.AgentStore.
type AgentStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Agent // keyed by agent_id
}

// NewAgentStore creates a new in-memory agent store.
func NewAgentStore() *AgentStore {
	return &AgentStore{
		data: make(map[string]*domain.Agent),
	}
}

// Compile-time interface check.
var _ storage.AgentStore = (*AgentStore)(nil)

// Insert adds a new agent. Returns ErrDuplicateKey if agent_id exists.
func (s *AgentStore) Insert(_ context.Context, a *domain.Agent) error {
	if a == nil || a.AgentID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[a.AgentID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *a
	s.data[a.AgentID] = &copy
	return nil
}

// GetByID retrieves an agent by its ID. Returns ErrNotFound if not exists.
func (s *AgentStore) GetByID(_ context.Context, agentID string) (*domain.Agent, error) {
	if agentID == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	a, exists := s.data[agentID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *a
	return &copy, nil
}

// ListByPhase retrieves all agents currently in the given phase.
func (s *AgentStore) ListByPhase(_ context.Context, phase domain.Phase) ([]*domain.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Agent
	for _, a := range s.data {
		if a.State.Phase == phase {
			copy := *a
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].AgentID < result[j].AgentID
	})
	return result, nil
}

// UpdateState writes a new curve state under an optimistic version check.
func (s *AgentStore) UpdateState(_ context.Context, agentID string, state domain.CurveState, expectedVersion int64) error {
	if agentID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, exists := s.data[agentID]
	if !exists {
		return storage.ErrNotFound
	}
	if a.Version != expectedVersion {
		return storage.ErrVersionConflict
	}

	a.State = state
	a.Version++
	a.UpdatedAt = time.Now().UnixMilli()
	return nil
}
