package clickhouse

import (
	"context"
	"fmt"

	"agent-curve-engine/internal/domain"
	"agent-curve-engine/internal/storage"
)

// PriceTickStore implements storage.PriceTickStore using ClickHouse.
// Ticks feed the trading charts; the engine records them best-effort after
// each committed trade.
type PriceTickStore struct {
	conn *Conn
}

// NewPriceTickStore creates a new PriceTickStore.
func NewPriceTickStore(conn *Conn) *PriceTickStore {
	return &PriceTickStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceTickStore = (*PriceTickStore)(nil)

// Insert adds one tick.
func (s *PriceTickStore) Insert(ctx context.Context, tick *domain.PriceTick) error {
	if tick == nil || tick.AgentID == "" {
		return storage.ErrInvalidInput
	}

	err := s.conn.Exec(ctx, `
		INSERT INTO price_ticks (agent_id, timestamp_ms, price, side, amount, tokens_delta)
		VALUES (?, ?, ?, ?, ?, ?)
	`, tick.AgentID, uint64(tick.TimestampMs), tick.Price, tick.Side, tick.Amount, tick.TokensDelta)
	if err != nil {
		return fmt.Errorf("insert price tick: %w", err)
	}
	return nil
}

// ListByAgent retrieves all ticks for an agent, ordered by timestamp ASC.
func (s *PriceTickStore) ListByAgent(ctx context.Context, agentID string) ([]*domain.PriceTick, error) {
	if agentID == "" {
		return nil, storage.ErrInvalidInput
	}

	return s.query(ctx, `
		SELECT agent_id, timestamp_ms, price, side, amount, tokens_delta
		FROM price_ticks
		WHERE agent_id = ?
		ORDER BY timestamp_ms ASC
	`, agentID)
}

// ListByTimeRange retrieves ticks within [start, end] ms inclusive.
func (s *PriceTickStore) ListByTimeRange(ctx context.Context, agentID string, start, end int64) ([]*domain.PriceTick, error) {
	if agentID == "" {
		return nil, storage.ErrInvalidInput
	}

	return s.query(ctx, `
		SELECT agent_id, timestamp_ms, price, side, amount, tokens_delta
		FROM price_ticks
		WHERE agent_id = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`, agentID, uint64(start), uint64(end))
}

func (s *PriceTickStore) query(ctx context.Context, query string, args ...any) ([]*domain.PriceTick, error) {
	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query price ticks: %w", err)
	}
	defer rows.Close()

	var result []*domain.PriceTick
	for rows.Next() {
		var tick domain.PriceTick
		var ts uint64
		if err := rows.Scan(&tick.AgentID, &ts, &tick.Price, &tick.Side, &tick.Amount, &tick.TokensDelta); err != nil {
			return nil, fmt.Errorf("scan price tick: %w", err)
		}
		tick.TimestampMs = int64(ts)
		result = append(result, &tick)
	}
	return result, rows.Err()
}
