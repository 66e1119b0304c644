package memory

import (
	"context"
	"sort"
	"sync"

	"agent-curve-engine/internal/domain"
	"agent-curve-engine/internal/storage"
)

// TradeRecordStore is an in-memory implementation of storage.TradeRecordStore.
type TradeRecordStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TradeRecord // keyed by trade_id
}

// NewTradeRecordStore creates a new in-memory trade record store.
func NewTradeRecordStore() *TradeRecordStore {
	return &TradeRecordStore{
		data: make(map[string]*domain.TradeRecord),
	}
}

// Compile-time interface check.
var _ storage.TradeRecordStore = (*TradeRecordStore)(nil)

// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeRecordStore) Insert(_ context.Context, t *domain.TradeRecord) error {
	if t == nil || t.TradeID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.TradeID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *t
	s.data[t.TradeID] = &copy
	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeRecordStore) GetByID(_ context.Context, tradeID string) (*domain.TradeRecord, error) {
	if tradeID == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[tradeID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *t
	return &copy, nil
}

// ListByAgent retrieves all trades for an agent, ordered by execution time ASC.
func (s *TradeRecordStore) ListByAgent(_ context.Context, agentID string) ([]*domain.TradeRecord, error) {
	if agentID == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeRecord
	for _, t := range s.data {
		if t.AgentID == agentID {
			copy := *t
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].ExecutedAt != result[j].ExecutedAt {
			return result[i].ExecutedAt < result[j].ExecutedAt
		}
		return result[i].TradeID < result[j].TradeID
	})
	return result, nil
}
