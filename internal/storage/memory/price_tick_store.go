package memory

import (
	"context"
	"sort"
	"sync"

	"agent-curve-engine/internal/domain"
	"agent-curve-engine/internal/storage"
)

// PriceTickStore is an in-memory implementation of storage.PriceTickStore.
type PriceTickStore struct {
	mu   sync.RWMutex
	data map[string][]*domain.PriceTick // keyed by agent_id
}

// NewPriceTickStore creates a new in-memory price tick store.
func NewPriceTickStore() *PriceTickStore {
	return &PriceTickStore{
		data: make(map[string][]*domain.PriceTick),
	}
}

// Compile-time interface check.
var _ storage.PriceTickStore = (*PriceTickStore)(nil)

// Insert adds one tick.
func (s *PriceTickStore) Insert(_ context.Context, tick *domain.PriceTick) error {
	if tick == nil || tick.AgentID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *tick
	s.data[tick.AgentID] = append(s.data[tick.AgentID], &copy)
	return nil
}

// ListByAgent retrieves all ticks for an agent, ordered by timestamp ASC.
func (s *PriceTickStore) ListByAgent(_ context.Context, agentID string) ([]*domain.PriceTick, error) {
	if agentID == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.PriceTick, 0, len(s.data[agentID]))
	for _, tick := range s.data[agentID] {
		copy := *tick
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})
	return result, nil
}

// ListByTimeRange retrieves ticks within [start, end] ms inclusive.
func (s *PriceTickStore) ListByTimeRange(ctx context.Context, agentID string, start, end int64) ([]*domain.PriceTick, error) {
	all, err := s.ListByAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}

	var result []*domain.PriceTick
	for _, tick := range all {
		if tick.TimestampMs >= start && tick.TimestampMs <= end {
			result = append(result, tick)
		}
	}
	return result, nil
}
