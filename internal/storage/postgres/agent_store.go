package postgres

import (
	"context"
	"fmt"
	"time"

	"agent-curve-engine/internal/domain"
	"agent-curve-engine/internal/storage"
)

// AgentStore implements storage.AgentStore using PostgreSQL.
type AgentStore struct {
	pool *Pool
}

// NewAgentStore creates a new AgentStore.
func NewAgentStore(pool *Pool) *AgentStore {
	return &AgentStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AgentStore = (*AgentStore)(nil)

const agentColumns = `
	agent_id, creator, name, symbol,
	start_price, end_price, tradeable_cap, graduation_reserve,
	trading_fee_bps, creator_share_bps, platform_share_bps,
	shares_sold, reserve_raised, phase,
	version, created_at, updated_at
`

// Insert adds a new agent. Returns ErrDuplicateKey if agent_id exists.
func (s *AgentStore) Insert(ctx context.Context, a *domain.Agent) error {
	if a == nil || a.AgentID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO agents (` + agentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err := s.pool.Exec(ctx, query,
		a.AgentID, a.Creator, a.Name, a.Symbol,
		a.Config.StartPrice, a.Config.EndPrice, a.Config.TradeableCap, a.Config.GraduationReserve,
		a.Config.TradingFeeBps, a.Config.CreatorShareBps, a.Config.PlatformShareBps,
		a.State.SharesSold, a.State.ReserveRaised, string(a.State.Phase),
		a.Version, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert agent: %w", err)
	}
	return nil
}

// GetByID retrieves an agent by its ID. Returns ErrNotFound if not exists.
func (s *AgentStore) GetByID(ctx context.Context, agentID string) (*domain.Agent, error) {
	if agentID == "" {
		return nil, storage.ErrInvalidInput
	}

	row := s.pool.QueryRow(ctx, `
		SELECT `+agentColumns+`
		FROM agents
		WHERE agent_id = $1
	`, agentID)

	a, err := scanAgent(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get agent: %w", err)
	}
	return a, nil
}

// ListByPhase retrieves all agents currently in the given phase.
func (s *AgentStore) ListByPhase(ctx context.Context, phase domain.Phase) ([]*domain.Agent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+agentColumns+`
		FROM agents
		WHERE phase = $1
		ORDER BY agent_id ASC
	`, string(phase))
	if err != nil {
		return nil, fmt.Errorf("list agents by phase: %w", err)
	}
	defer rows.Close()

	var result []*domain.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// UpdateState writes a new curve state under an optimistic version check.
// Zero rows affected means either a missing agent or a stale version; the
// two are told apart with a follow-up existence probe.
func (s *AgentStore) UpdateState(ctx context.Context, agentID string, state domain.CurveState, expectedVersion int64) error {
	if agentID == "" {
		return storage.ErrInvalidInput
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE agents
		SET shares_sold = $1, reserve_raised = $2, phase = $3,
		    version = version + 1, updated_at = $4
		WHERE agent_id = $5 AND version = $6
	`, state.SharesSold, state.ReserveRaised, string(state.Phase),
		time.Now().UnixMilli(), agentID, expectedVersion)
	if err != nil {
		return fmt.Errorf("update agent state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM agents WHERE agent_id = $1)`, agentID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("probe agent: %w", err)
		}
		if !exists {
			return storage.ErrNotFound
		}
		return storage.ErrVersionConflict
	}
	return nil
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row rowScanner) (*domain.Agent, error) {
	var a domain.Agent
	var phase string
	err := row.Scan(
		&a.AgentID, &a.Creator, &a.Name, &a.Symbol,
		&a.Config.StartPrice, &a.Config.EndPrice, &a.Config.TradeableCap, &a.Config.GraduationReserve,
		&a.Config.TradingFeeBps, &a.Config.CreatorShareBps, &a.Config.PlatformShareBps,
		&a.State.SharesSold, &a.State.ReserveRaised, &phase,
		&a.Version, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.State.Phase = domain.Phase(phase)
	return &a, nil
}
