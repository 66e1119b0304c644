package postgres

import (
	"context"
	"fmt"

	"agent-curve-engine/internal/domain"
	"agent-curve-engine/internal/storage"
)

// TradeRecordStore implements storage.TradeRecordStore using PostgreSQL.
type TradeRecordStore struct {
	pool *Pool
}

// NewTradeRecordStore creates a new TradeRecordStore.
func NewTradeRecordStore(pool *Pool) *TradeRecordStore {
	return &TradeRecordStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeRecordStore = (*TradeRecordStore)(nil)

const tradeColumns = `
	trade_id, agent_id, holder_id, side,
	gross_amount, net_amount, tokens_delta,
	fee, creator_fee, platform_fee, lp_fee,
	price_before, price_after, avg_price,
	shares_sold, reserve_raised, executed_at
`

const insertTradeQuery = `
	INSERT INTO trade_records (` + tradeColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
`

func tradeArgs(t *domain.TradeRecord) []any {
	return []any{
		t.TradeID, t.AgentID, t.HolderID, t.Side,
		t.GrossAmount, t.NetAmount, t.TokensDelta,
		t.Fee, t.CreatorFee, t.PlatformFee, t.LPFee,
		t.PriceBefore, t.PriceAfter, t.AvgPrice,
		t.SharesSold, t.ReserveRaised, t.ExecutedAt,
	}
}

// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
func (s *TradeRecordStore) Insert(ctx context.Context, t *domain.TradeRecord) error {
	if t == nil || t.TradeID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, insertTradeQuery, tradeArgs(t)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade record: %w", err)
	}
	return nil
}

// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
func (s *TradeRecordStore) GetByID(ctx context.Context, tradeID string) (*domain.TradeRecord, error) {
	if tradeID == "" {
		return nil, storage.ErrInvalidInput
	}

	row := s.pool.QueryRow(ctx, `
		SELECT `+tradeColumns+`
		FROM trade_records
		WHERE trade_id = $1
	`, tradeID)

	t, err := scanTrade(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade record: %w", err)
	}
	return t, nil
}

// ListByAgent retrieves all trades for an agent, ordered by execution time ASC.
func (s *TradeRecordStore) ListByAgent(ctx context.Context, agentID string) ([]*domain.TradeRecord, error) {
	if agentID == "" {
		return nil, storage.ErrInvalidInput
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+tradeColumns+`
		FROM trade_records
		WHERE agent_id = $1
		ORDER BY executed_at ASC, trade_id ASC
	`, agentID)
	if err != nil {
		return nil, fmt.Errorf("list trade records: %w", err)
	}
	defer rows.Close()

	var result []*domain.TradeRecord
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade record: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}

func scanTrade(row rowScanner) (*domain.TradeRecord, error) {
	var t domain.TradeRecord
	err := row.Scan(
		&t.TradeID, &t.AgentID, &t.HolderID, &t.Side,
		&t.GrossAmount, &t.NetAmount, &t.TokensDelta,
		&t.Fee, &t.CreatorFee, &t.PlatformFee, &t.LPFee,
		&t.PriceBefore, &t.PriceAfter, &t.AvgPrice,
		&t.SharesSold, &t.ReserveRaised, &t.ExecutedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
