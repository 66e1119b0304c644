package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"agent-curve-engine/internal/domain"
	"agent-curve-engine/internal/storage"
)

// GraduationEventStore implements storage.GraduationEventStore using
// PostgreSQL. The holder snapshot is stored as a JSONB document; it is read
// back whole for the downstream deployment and never queried into.
type GraduationEventStore struct {
	pool *Pool
}

// NewGraduationEventStore creates a new GraduationEventStore.
func NewGraduationEventStore(pool *Pool) *GraduationEventStore {
	return &GraduationEventStore{pool: pool}
}

// Compile-time interface check.
var _ storage.GraduationEventStore = (*GraduationEventStore)(nil)

// Insert adds a new event. Returns ErrDuplicateKey if the agent already has one.
func (s *GraduationEventStore) Insert(ctx context.Context, e *domain.GraduationEvent) error {
	if e == nil || e.EventID == "" || e.AgentID == "" {
		return storage.ErrInvalidInput
	}

	snapshot, err := json.Marshal(e.HolderSnapshot)
	if err != nil {
		return fmt.Errorf("marshal holder snapshot: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO graduation_events (
			event_id, agent_id, reserve_at_event, shares_sold_at_event,
			holder_snapshot, status, attempts, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, e.EventID, e.AgentID, e.ReserveAtEvent, e.SharesSoldAtEvent,
		snapshot, e.Status, e.Attempts, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert graduation event: %w", err)
	}
	return nil
}

// GetByAgentID retrieves the agent's event. Returns ErrNotFound if the agent
// never graduated.
func (s *GraduationEventStore) GetByAgentID(ctx context.Context, agentID string) (*domain.GraduationEvent, error) {
	if agentID == "" {
		return nil, storage.ErrInvalidInput
	}

	row := s.pool.QueryRow(ctx, `
		SELECT event_id, agent_id, reserve_at_event, shares_sold_at_event,
		       holder_snapshot, status, attempts, created_at, updated_at
		FROM graduation_events
		WHERE agent_id = $1
	`, agentID)

	e, err := scanEvent(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get graduation event: %w", err)
	}
	return e, nil
}

// ListByStatus retrieves all events with the given status.
func (s *GraduationEventStore) ListByStatus(ctx context.Context, status string) ([]*domain.GraduationEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT event_id, agent_id, reserve_at_event, shares_sold_at_event,
		       holder_snapshot, status, attempts, created_at, updated_at
		FROM graduation_events
		WHERE status = $1
		ORDER BY agent_id ASC
	`, status)
	if err != nil {
		return nil, fmt.Errorf("list graduation events: %w", err)
	}
	defer rows.Close()

	var result []*domain.GraduationEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan graduation event: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// Update replaces status, attempts and timestamps of an existing event.
func (s *GraduationEventStore) Update(ctx context.Context, e *domain.GraduationEvent) error {
	if e == nil || e.AgentID == "" {
		return storage.ErrInvalidInput
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE graduation_events
		SET status = $1, attempts = $2, updated_at = $3
		WHERE agent_id = $4
	`, e.Status, e.Attempts, e.UpdatedAt, e.AgentID)
	if err != nil {
		return fmt.Errorf("update graduation event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func scanEvent(row rowScanner) (*domain.GraduationEvent, error) {
	var e domain.GraduationEvent
	var snapshot []byte
	err := row.Scan(
		&e.EventID, &e.AgentID, &e.ReserveAtEvent, &e.SharesSoldAtEvent,
		&snapshot, &e.Status, &e.Attempts, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &e.HolderSnapshot); err != nil {
			return nil, fmt.Errorf("unmarshal holder snapshot: %w", err)
		}
	}
	return &e, nil
}
