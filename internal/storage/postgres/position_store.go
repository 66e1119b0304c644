package postgres

import (
	"context"
	"fmt"

	"agent-curve-engine/internal/domain"
	"agent-curve-engine/internal/storage"
)

// PositionStore implements storage.PositionStore using PostgreSQL.
type PositionStore struct {
	pool *Pool
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(pool *Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

// Get retrieves a position. Returns ErrNotFound if the holder never traded
// this agent.
func (s *PositionStore) Get(ctx context.Context, agentID, holderID string) (*domain.Position, error) {
	if agentID == "" || holderID == "" {
		return nil, storage.ErrInvalidInput
	}

	row := s.pool.QueryRow(ctx, `
		SELECT agent_id, holder_id, token_balance, updated_at
		FROM positions
		WHERE agent_id = $1 AND holder_id = $2
	`, agentID, holderID)

	var p domain.Position
	if err := row.Scan(&p.AgentID, &p.HolderID, &p.TokenBalance, &p.UpdatedAt); err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get position: %w", err)
	}
	return &p, nil
}

// Upsert creates or replaces a position.
func (s *PositionStore) Upsert(ctx context.Context, p *domain.Position) error {
	if p == nil || p.AgentID == "" || p.HolderID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO positions (agent_id, holder_id, token_balance, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (agent_id, holder_id) DO UPDATE
		SET token_balance = EXCLUDED.token_balance,
		    updated_at = EXCLUDED.updated_at
	`, p.AgentID, p.HolderID, p.TokenBalance, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert position: %w", err)
	}
	return nil
}

// ListByAgent retrieves all positions for an agent, ordered by holder ID ASC.
func (s *PositionStore) ListByAgent(ctx context.Context, agentID string) ([]*domain.Position, error) {
	if agentID == "" {
		return nil, storage.ErrInvalidInput
	}

	rows, err := s.pool.Query(ctx, `
		SELECT agent_id, holder_id, token_balance, updated_at
		FROM positions
		WHERE agent_id = $1
		ORDER BY holder_id ASC
	`, agentID)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}
	defer rows.Close()

	var result []*domain.Position
	for rows.Next() {
		var p domain.Position
		if err := rows.Scan(&p.AgentID, &p.HolderID, &p.TokenBalance, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		result = append(result, &p)
	}
	return result, rows.Err()
}
