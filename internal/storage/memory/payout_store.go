package memory

import (
	"context"
	"sort"
	"sync"

	"agent-curve-engine/internal/domain"
	"agent-curve-engine/internal/storage"
)

// PayoutStore is an in-memory implementation of storage.FeePayoutStore.
type PayoutStore struct {
	mu   sync.RWMutex
	data map[string]*domain.FeePayout // keyed by payout_id
}

// NewPayoutStore creates a new in-memory fee payout store.
func NewPayoutStore() *PayoutStore {
	return &PayoutStore{
		data: make(map[string]*domain.FeePayout),
	}
}

// Compile-time interface check.
var _ storage.FeePayoutStore = (*PayoutStore)(nil)

// Insert adds a new payout. Returns ErrDuplicateKey if payout_id exists.
func (s *PayoutStore) Insert(_ context.Context, p *domain.FeePayout) error {
	if p == nil || p.PayoutID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.PayoutID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *p
	s.data[p.PayoutID] = &copy
	return nil
}

// ListByStatus retrieves all payouts with the given status, oldest first.
func (s *PayoutStore) ListByStatus(_ context.Context, status string) ([]*domain.FeePayout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.FeePayout
	for _, p := range s.data {
		if p.Status == status {
			copy := *p
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt != result[j].CreatedAt {
			return result[i].CreatedAt < result[j].CreatedAt
		}
		return result[i].PayoutID < result[j].PayoutID
	})
	return result, nil
}

// Update replaces status, attempts and last error of an existing payout.
func (s *PayoutStore) Update(_ context.Context, p *domain.FeePayout) error {
	if p == nil || p.PayoutID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.PayoutID]; !exists {
		return storage.ErrNotFound
	}

	copy := *p
	s.data[p.PayoutID] = &copy
	return nil
}
