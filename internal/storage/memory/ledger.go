package memory

import (
	"context"
	"errors"
	"fmt"

	"agent-curve-engine/internal/storage"
)

// Ledger is an in-memory implementation of storage.TradeLedger over the
// component memory stores. A ledger-level mutex plus validate-then-apply
// ordering gives the all-or-nothing behavior a SQL transaction provides in
// the postgres implementation; the engine is the only writer and already
// serializes per agent.
type Ledger struct {
	agents    *AgentStore
	positions *PositionStore
	trades    *TradeRecordStore
	payouts   *PayoutStore
}

// NewLedger creates a ledger over in-memory stores.
func NewLedger(agents *AgentStore, positions *PositionStore, trades *TradeRecordStore, payouts *PayoutStore) *Ledger {
	return &Ledger{agents: agents, positions: positions, trades: trades, payouts: payouts}
}

// Compile-time interface check.
var _ storage.TradeLedger = (*Ledger)(nil)

// ApplyTrade commits state update, position update, trade append and payout
// rows as one logical transaction.
func (l *Ledger) ApplyTrade(ctx context.Context, app *storage.TradeApplication) error {
	if app == nil || app.AgentID == "" || app.Trade == nil || app.Position == nil {
		return storage.ErrInvalidInput
	}

	// Validate everything that could fail before mutating anything.
	agent, err := l.agents.GetByID(ctx, app.AgentID)
	if err != nil {
		return err
	}
	if agent.Version != app.ExpectedVersion {
		return storage.ErrVersionConflict
	}
	if _, err := l.trades.GetByID(ctx, app.Trade.TradeID); !errors.Is(err, storage.ErrNotFound) {
		if err == nil {
			return storage.ErrDuplicateKey
		}
		return err
	}

	if err := l.agents.UpdateState(ctx, app.AgentID, app.NewState, app.ExpectedVersion); err != nil {
		return err
	}
	if err := l.positions.Upsert(ctx, app.Position); err != nil {
		return fmt.Errorf("upsert position: %w", err)
	}
	if err := l.trades.Insert(ctx, app.Trade); err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	for _, p := range app.Payouts {
		if err := l.payouts.Insert(ctx, p); err != nil {
			return fmt.Errorf("insert payout: %w", err)
		}
	}
	return nil
}
