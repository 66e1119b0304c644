package memory

import (
	"context"
	"sort"
	"sync"

	"agent-curve-engine/internal/domain"
	"agent-curve-engine/internal/storage"
)

// GraduationEventStore is an in-memory implementation of
// storage.GraduationEventStore. Keyed by agent: one event per agent, ever.
type GraduationEventStore struct {
	mu   sync.RWMutex
	data map[string]*domain.GraduationEvent // keyed by agent_id
}

// NewGraduationEventStore creates a new in-memory graduation event store.
func NewGraduationEventStore() *GraduationEventStore {
	return &GraduationEventStore{
		data: make(map[string]*domain.GraduationEvent),
	}
}

// Compile-time interface check.
var _ storage.GraduationEventStore = (*GraduationEventStore)(nil)

// Insert adds a new event. Returns ErrDuplicateKey if the agent already has one.
func (s *GraduationEventStore) Insert(_ context.Context, e *domain.GraduationEvent) error {
	if e == nil || e.EventID == "" || e.AgentID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.AgentID]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[e.AgentID] = copyEvent(e)
	return nil
}

// GetByAgentID retrieves the agent's event. Returns ErrNotFound if the agent
// never graduated.
func (s *GraduationEventStore) GetByAgentID(_ context.Context, agentID string) (*domain.GraduationEvent, error) {
	if agentID == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.data[agentID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	return copyEvent(e), nil
}

// ListByStatus retrieves all events with the given status.
func (s *GraduationEventStore) ListByStatus(_ context.Context, status string) ([]*domain.GraduationEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.GraduationEvent
	for _, e := range s.data {
		if e.Status == status {
			result = append(result, copyEvent(e))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].AgentID < result[j].AgentID
	})
	return result, nil
}

// Update replaces status, attempts and timestamps of an existing event.
func (s *GraduationEventStore) Update(_ context.Context, e *domain.GraduationEvent) error {
	if e == nil || e.AgentID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.AgentID]; !exists {
		return storage.ErrNotFound
	}

	s.data[e.AgentID] = copyEvent(e)
	return nil
}

// copyEvent deep-copies an event including its holder snapshot.
func copyEvent(e *domain.GraduationEvent) *domain.GraduationEvent {
	copy := *e
	copy.HolderSnapshot = make([]domain.HolderSnapshot, len(e.HolderSnapshot))
	for i, h := range e.HolderSnapshot {
		copy.HolderSnapshot[i] = h
	}
	return &copy
}
