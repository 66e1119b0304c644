package postgres

import (
	"context"
	"fmt"
	"time"

	"agent-curve-engine/internal/storage"
)

// Ledger implements storage.TradeLedger using a single PostgreSQL
// transaction: curve state, position, trade record and payout rows commit
// together or not at all. The optimistic version check rides on the
// `WHERE version = $n` clause of the state update.
type Ledger struct {
	pool *Pool
}

// NewLedger creates a new Ledger.
func NewLedger(pool *Pool) *Ledger {
	return &Ledger{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeLedger = (*Ledger)(nil)

// ApplyTrade commits one executed trade atomically.
func (l *Ledger) ApplyTrade(ctx context.Context, app *storage.TradeApplication) error {
	if app == nil || app.AgentID == "" || app.Trade == nil || app.Position == nil {
		return storage.ErrInvalidInput
	}

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE agents
		SET shares_sold = $1, reserve_raised = $2, phase = $3,
		    version = version + 1, updated_at = $4
		WHERE agent_id = $5 AND version = $6
	`, app.NewState.SharesSold, app.NewState.ReserveRaised, string(app.NewState.Phase),
		time.Now().UnixMilli(), app.AgentID, app.ExpectedVersion)
	if err != nil {
		return fmt.Errorf("update agent state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM agents WHERE agent_id = $1)`, app.AgentID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("probe agent: %w", err)
		}
		if !exists {
			return storage.ErrNotFound
		}
		return storage.ErrVersionConflict
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO positions (agent_id, holder_id, token_balance, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (agent_id, holder_id) DO UPDATE
		SET token_balance = EXCLUDED.token_balance,
		    updated_at = EXCLUDED.updated_at
	`, app.Position.AgentID, app.Position.HolderID, app.Position.TokenBalance, app.Position.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert position: %w", err)
	}

	if _, err := tx.Exec(ctx, insertTradeQuery, tradeArgs(app.Trade)...); err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade record: %w", err)
	}

	for _, p := range app.Payouts {
		if _, err := tx.Exec(ctx, insertPayoutQuery, payoutArgs(p)...); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert fee payout: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
