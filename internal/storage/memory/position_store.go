package memory

import (
	"context"
	"sort"
	"sync"

	"agent-curve-engine/internal/domain"
	"agent-curve-engine/internal/storage"
)

type positionKey struct {
	agentID  string
	holderID string
}

// PositionStore is an in-memory implementation of storage.PositionStore.
type PositionStore struct {
	mu   sync.RWMutex
	data map[positionKey]*domain.Position
}

// NewPositionStore creates a new in-memory position store.
func NewPositionStore() *PositionStore {
	return &PositionStore{
		data: make(map[positionKey]*domain.Position),
	}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

// Get retrieves a position. Returns ErrNotFound if the holder never traded
// this agent.
func (s *PositionStore) Get(_ context.Context, agentID, holderID string) (*domain.Position, error) {
	if agentID == "" || holderID == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[positionKey{agentID, holderID}]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *p
	return &copy, nil
}

// Upsert creates or replaces a position.
func (s *PositionStore) Upsert(_ context.Context, p *domain.Position) error {
	if p == nil || p.AgentID == "" || p.HolderID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *p
	s.data[positionKey{p.AgentID, p.HolderID}] = &copy
	return nil
}

// ListByAgent retrieves all positions for an agent, ordered by holder ID ASC.
func (s *PositionStore) ListByAgent(_ context.Context, agentID string) ([]*domain.Position, error) {
	if agentID == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Position
	for k, p := range s.data {
		if k.agentID == agentID {
			copy := *p
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].HolderID < result[j].HolderID
	})
	return result, nil
}
