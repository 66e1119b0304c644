package postgres

import (
	"context"
	"fmt"

	"agent-curve-engine/internal/domain"
	"agent-curve-engine/internal/storage"
)

// PayoutStore implements storage.FeePayoutStore using PostgreSQL.
type PayoutStore struct {
	pool *Pool
}

// NewPayoutStore creates a new PayoutStore.
func NewPayoutStore(pool *Pool) *PayoutStore {
	return &PayoutStore{pool: pool}
}

// Compile-time interface check.
var _ storage.FeePayoutStore = (*PayoutStore)(nil)

const payoutColumns = `
	payout_id, trade_id, agent_id, recipient, address,
	amount, status, attempts, last_error, created_at, updated_at
`

const insertPayoutQuery = `
	INSERT INTO fee_payouts (` + payoutColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
`

func payoutArgs(p *domain.FeePayout) []any {
	return []any{
		p.PayoutID, p.TradeID, p.AgentID, p.Recipient, p.Address,
		p.Amount, p.Status, p.Attempts, p.LastError, p.CreatedAt, p.UpdatedAt,
	}
}

// Insert adds a new payout. Returns ErrDuplicateKey if payout_id exists.
func (s *PayoutStore) Insert(ctx context.Context, p *domain.FeePayout) error {
	if p == nil || p.PayoutID == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, insertPayoutQuery, payoutArgs(p)...)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert fee payout: %w", err)
	}
	return nil
}

// ListByStatus retrieves all payouts with the given status, oldest first.
func (s *PayoutStore) ListByStatus(ctx context.Context, status string) ([]*domain.FeePayout, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+payoutColumns+`
		FROM fee_payouts
		WHERE status = $1
		ORDER BY created_at ASC, payout_id ASC
	`, status)
	if err != nil {
		return nil, fmt.Errorf("list fee payouts: %w", err)
	}
	defer rows.Close()

	var result []*domain.FeePayout
	for rows.Next() {
		var p domain.FeePayout
		if err := rows.Scan(
			&p.PayoutID, &p.TradeID, &p.AgentID, &p.Recipient, &p.Address,
			&p.Amount, &p.Status, &p.Attempts, &p.LastError, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan fee payout: %w", err)
		}
		result = append(result, &p)
	}
	return result, rows.Err()
}

// Update replaces status, attempts and last error of an existing payout.
func (s *PayoutStore) Update(ctx context.Context, p *domain.FeePayout) error {
	if p == nil || p.PayoutID == "" {
		return storage.ErrInvalidInput
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE fee_payouts
		SET status = $1, attempts = $2, last_error = $3, updated_at = $4
		WHERE payout_id = $5
	`, p.Status, p.Attempts, p.LastError, p.UpdatedAt, p.PayoutID)
	if err != nil {
		return fmt.Errorf("update fee payout: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
