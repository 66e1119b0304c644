package storage

import (
	"context"

	"agent-curve-engine/internal/domain"
)

// AgentStore provides access to agents storage (curve config + state).
type AgentStore interface {
	// Insert adds a new agent. Returns ErrDuplicateKey if agent_id exists.
	Insert(ctx context.Context, a *domain.Agent) error

	// GetByID retrieves an agent by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, agentID string) (*domain.Agent, error)

	// ListByPhase retrieves all agents currently in the given phase.
	ListByPhase(ctx context.Context, phase domain.Phase) ([]*domain.Agent, error)

	// UpdateState writes a new curve state if the stored version still equals
	// expectedVersion, bumping the version. Returns ErrVersionConflict
	// otherwise, ErrNotFound if the agent does not exist.
	UpdateState(ctx context.Context, agentID string, state domain.CurveState, expectedVersion int64) error
}

// PositionStore provides access to per-(agent, holder) positions.
// Positions are created on first buy and never deleted.
type PositionStore interface {
	// Get retrieves a position. Returns ErrNotFound if the holder never
	// traded this agent.
	Get(ctx context.Context, agentID, holderID string) (*domain.Position, error)

	// Upsert creates or replaces a position.
	Upsert(ctx context.Context, p *domain.Position) error

	// ListByAgent retrieves all positions for an agent, including
	// zero-balance ones, ordered by holder ID ASC.
	ListByAgent(ctx context.Context, agentID string) ([]*domain.Position, error)
}

// TradeRecordStore provides access to the append-only trade ledger.
type TradeRecordStore interface {
	// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, t *domain.TradeRecord) error

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tradeID string) (*domain.TradeRecord, error)

	// ListByAgent retrieves all trades for an agent, ordered by execution
	// time ASC.
	ListByAgent(ctx context.Context, agentID string) ([]*domain.TradeRecord, error)
}

// GraduationEventStore provides access to graduation events.
// At most one event exists per agent.
type GraduationEventStore interface {
	// Insert adds a new event. Returns ErrDuplicateKey if the agent already
	// has one.
	Insert(ctx context.Context, e *domain.GraduationEvent) error

	// GetByAgentID retrieves the agent's event. Returns ErrNotFound if the
	// agent never graduated.
	GetByAgentID(ctx context.Context, agentID string) (*domain.GraduationEvent, error)

	// ListByStatus retrieves all events with the given status.
	ListByStatus(ctx context.Context, status string) ([]*domain.GraduationEvent, error)

	// Update replaces status, attempts and timestamps of an existing event.
	// Returns ErrNotFound if the event does not exist.
	Update(ctx context.Context, e *domain.GraduationEvent) error
}

// FeePayoutStore provides access to owed fee distributions.
type FeePayoutStore interface {
	// Insert adds a new payout. Returns ErrDuplicateKey if payout_id exists.
	Insert(ctx context.Context, p *domain.FeePayout) error

	// ListByStatus retrieves all payouts with the given status, oldest first.
	ListByStatus(ctx context.Context, status string) ([]*domain.FeePayout, error)

	// Update replaces status, attempts and last error of an existing payout.
	// Returns ErrNotFound if the payout does not exist.
	Update(ctx context.Context, p *domain.FeePayout) error
}

// PriceTickStore provides access to the chart timeseries. Best-effort
// analytics data recorded after each committed trade.
type PriceTickStore interface {
	// Insert adds one tick.
	Insert(ctx context.Context, tick *domain.PriceTick) error

	// ListByAgent retrieves all ticks for an agent, ordered by timestamp ASC.
	ListByAgent(ctx context.Context, agentID string) ([]*domain.PriceTick, error)

	// ListByTimeRange retrieves ticks for an agent within [start, end] ms,
	// inclusive, ordered by timestamp ASC.
	ListByTimeRange(ctx context.Context, agentID string, start, end int64) ([]*domain.PriceTick, error)
}

// TradeApplication bundles every mutation of one executed trade. Applied as
// one logical transaction: either all of it commits or none of it does.
type TradeApplication struct {
	AgentID         string
	ExpectedVersion int64
	NewState        domain.CurveState
	Position        *domain.Position
	Trade           *domain.TradeRecord
	Payouts         []*domain.FeePayout
}

// TradeLedger applies a TradeApplication atomically. Returns
// ErrVersionConflict if the agent's version moved since it was read,
// ErrNotFound if the agent does not exist.
type TradeLedger interface {
	ApplyTrade(ctx context.Context, app *TradeApplication) error
}
