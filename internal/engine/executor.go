// Package engine executes curve trades. It is the only writer of curve
// state: every execution re-derives the quote server-side under a per-agent
// lock and commits all resulting mutations through the trade ledger as one
// transaction.
package engine

import (
	"context"
	"errors"
	"io"
	"log"
	"time"

	"agent-curve-engine/internal/curve"
	"agent-curve-engine/internal/domain"
	"agent-curve-engine/internal/idhash"
	"agent-curve-engine/internal/locking"
	"agent-curve-engine/internal/observability"
	"agent-curve-engine/internal/storage"
)

// ExecuteRequest describes one trade to execute. MinOut of zero disables
// slippage protection; otherwise the recomputed output (tokens for buys,
// net reserve for sells) must be at least MinOut.
type ExecuteRequest struct {
	AgentID  string
	HolderID string
	Side     string // domain.TradeBuy | domain.TradeSell
	Amount   float64
	MinOut   float64
}

// TradeSink receives committed trades, e.g. for websocket fan-out.
// Implementations must not block.
type TradeSink interface {
	TradeExecuted(t *domain.TradeRecord)
}

// Executor is the trade execution service.
type Executor struct {
	agents    storage.AgentStore
	positions storage.PositionStore
	ledger    storage.TradeLedger
	ticks     storage.PriceTickStore
	metrics   *observability.Metrics
	logger    *log.Logger
	locks     *locking.KeyedMutex

	platformAddress string
	onEligible      func(agentID string)
	sink            TradeSink
}

// Options contains configuration for creating an Executor.
type Options struct {
	Agents    storage.AgentStore
	Positions storage.PositionStore
	Ledger    storage.TradeLedger
	Ticks     storage.PriceTickStore // optional, best-effort chart data
	Metrics   *observability.Metrics // optional
	Logger    *log.Logger            // optional

	// Locks is the per-agent mutex set. Share one instance with the
	// graduation manager so trades and graduations on the same agent never
	// interleave. A nil Locks gets a private set.
	Locks *locking.KeyedMutex

	// PlatformAddress receives the platform's fee share.
	PlatformAddress string

	// OnGraduationEligible is invoked asynchronously after a committed trade
	// pushes the reserve over the graduation threshold. Optional.
	OnGraduationEligible func(agentID string)

	// Sink receives committed trades. Optional.
	Sink TradeSink
}

// NewExecutor creates a trade executor.
func NewExecutor(opts Options) *Executor {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	locks := opts.Locks
	if locks == nil {
		locks = locking.NewKeyedMutex()
	}
	return &Executor{
		agents:          opts.Agents,
		positions:       opts.Positions,
		ledger:          opts.Ledger,
		ticks:           opts.Ticks,
		metrics:         opts.Metrics,
		logger:          logger,
		locks:           locks,
		platformAddress: opts.PlatformAddress,
		onEligible:      opts.OnGraduationEligible,
		sink:            opts.Sink,
	}
}

// Execute runs one trade end to end:
//  1. Serialize on the agent.
//  2. Load current config and state; reject unless phase is active.
//  3. Recompute the quote from scratch. Client-side quotes are advisory
//     only: state may have moved since the preview.
//  4. Enforce MinOut.
//  5. Commit state, position, trade record and payout rows atomically.
//  6. After commit: record a price tick, notify the sink, and signal
//     graduation eligibility asynchronously.
//
// A failure anywhere before the ledger commit leaves no partial mutation.
func (e *Executor) Execute(ctx context.Context, req ExecuteRequest) (*domain.TradeRecord, error) {
	if req.Side != domain.TradeBuy && req.Side != domain.TradeSell {
		return nil, storage.ErrInvalidInput
	}
	if req.AgentID == "" || req.HolderID == "" {
		return nil, storage.ErrInvalidInput
	}

	start := time.Now()
	unlock := e.locks.Acquire(req.AgentID)
	defer unlock()

	agent, err := e.agents.GetByID(ctx, req.AgentID)
	if err != nil {
		return nil, err
	}
	if agent.State.Phase != domain.PhaseActive {
		return nil, e.reject(req.Side, domain.ErrNotActive)
	}

	var trade *domain.TradeRecord
	var position *domain.Position
	if req.Side == domain.TradeBuy {
		trade, position, err = e.prepareBuy(ctx, agent, req)
	} else {
		trade, position, err = e.prepareSell(ctx, agent, req)
	}
	if err != nil {
		return nil, e.reject(req.Side, err)
	}

	app := &storage.TradeApplication{
		AgentID:         agent.AgentID,
		ExpectedVersion: agent.Version,
		NewState: domain.CurveState{
			SharesSold:    trade.SharesSold,
			ReserveRaised: trade.ReserveRaised,
			Phase:         domain.PhaseActive,
		},
		Position: position,
		Trade:    trade,
		Payouts:  e.buildPayouts(agent, trade),
	}
	if err := e.ledger.ApplyTrade(ctx, app); err != nil {
		if errors.Is(err, storage.ErrVersionConflict) && e.metrics != nil {
			e.metrics.LedgerConflicts.Inc()
		}
		return nil, e.reject(req.Side, err)
	}

	e.afterCommit(trade, app.NewState, agent.Config)
	if e.metrics != nil {
		e.metrics.TradesTotal.WithLabelValues(req.Side, "ok").Inc()
		e.metrics.TradeVolume.WithLabelValues(req.Side).Add(trade.GrossAmount)
		e.metrics.FeesCollected.Add(trade.Fee)
		e.metrics.TradeDuration.Observe(time.Since(start).Seconds())
	}
	return trade, nil
}

func (e *Executor) prepareBuy(ctx context.Context, agent *domain.Agent, req ExecuteRequest) (*domain.TradeRecord, *domain.Position, error) {
	ret, err := curve.CalculateBuyReturn(agent.Config, agent.State, req.Amount)
	if err != nil {
		return nil, nil, err
	}
	if req.MinOut > 0 && ret.TokensOut < req.MinOut {
		return nil, nil, domain.ErrSlippageExceeded
	}

	now := time.Now().UnixMilli()
	position := &domain.Position{
		AgentID:   agent.AgentID,
		HolderID:  req.HolderID,
		UpdatedAt: now,
	}
	prev, err := e.positions.Get(ctx, agent.AgentID, req.HolderID)
	if err == nil {
		position.TokenBalance = prev.TokenBalance
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, nil, err
	}
	position.TokenBalance += ret.TokensOut

	split := curve.SplitFee(agent.Config, ret.Fee)
	trade := &domain.TradeRecord{
		TradeID:       idhash.ComputeTradeID(agent.AgentID, req.HolderID, req.Side, req.Amount, agent.Version),
		AgentID:       agent.AgentID,
		HolderID:      req.HolderID,
		Side:          domain.TradeBuy,
		GrossAmount:   req.Amount,
		NetAmount:     ret.NetAmountIn,
		TokensDelta:   ret.TokensOut,
		Fee:           ret.Fee,
		CreatorFee:    split.Creator,
		PlatformFee:   split.Platform,
		LPFee:         split.LP,
		PriceBefore:   ret.PriceStart,
		PriceAfter:    ret.PriceEnd,
		AvgPrice:      ret.AvgPrice,
		SharesSold:    agent.State.SharesSold + ret.TokensOut,
		ReserveRaised: agent.State.ReserveRaised + ret.NetAmountIn,
		ExecutedAt:    now,
	}
	return trade, position, nil
}

func (e *Executor) prepareSell(ctx context.Context, agent *domain.Agent, req ExecuteRequest) (*domain.TradeRecord, *domain.Position, error) {
	prev, err := e.positions.Get(ctx, agent.AgentID, req.HolderID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, domain.ErrInsufficientBalance
		}
		return nil, nil, err
	}
	if req.Amount > prev.TokenBalance {
		return nil, nil, domain.ErrInsufficientBalance
	}

	ret, err := curve.CalculateSellReturn(agent.Config, agent.State, req.Amount)
	if err != nil {
		return nil, nil, err
	}
	if req.MinOut > 0 && ret.NetAmountOut < req.MinOut {
		return nil, nil, domain.ErrSlippageExceeded
	}

	now := time.Now().UnixMilli()
	position := &domain.Position{
		AgentID:      agent.AgentID,
		HolderID:     req.HolderID,
		TokenBalance: prev.TokenBalance - req.Amount,
		UpdatedAt:    now,
	}

	reserveAfter := agent.State.ReserveRaised - ret.GrossAmountOut
	if reserveAfter < 0 {
		reserveAfter = 0 // absorb the float slack on a full unwind
	}
	split := curve.SplitFee(agent.Config, ret.Fee)
	trade := &domain.TradeRecord{
		TradeID:       idhash.ComputeTradeID(agent.AgentID, req.HolderID, req.Side, req.Amount, agent.Version),
		AgentID:       agent.AgentID,
		HolderID:      req.HolderID,
		Side:          domain.TradeSell,
		GrossAmount:   ret.GrossAmountOut,
		NetAmount:     ret.NetAmountOut,
		TokensDelta:   req.Amount,
		Fee:           ret.Fee,
		CreatorFee:    split.Creator,
		PlatformFee:   split.Platform,
		LPFee:         split.LP,
		PriceBefore:   ret.PriceStart,
		PriceAfter:    ret.PriceEnd,
		AvgPrice:      ret.AvgPrice,
		SharesSold:    agent.State.SharesSold - req.Amount,
		ReserveRaised: reserveAfter,
		ExecutedAt:    now,
	}
	return trade, position, nil
}

// buildPayouts creates pending payout rows for the creator and platform fee
// shares. The LP share stays with the curve and is recorded on the trade
// only. Delivery happens out of band; failures never touch the trade.
func (e *Executor) buildPayouts(agent *domain.Agent, trade *domain.TradeRecord) []*domain.FeePayout {
	var payouts []*domain.FeePayout
	if trade.CreatorFee > 0 {
		payouts = append(payouts, &domain.FeePayout{
			PayoutID:  idhash.ComputePayoutID(trade.TradeID, domain.PayoutCreator),
			TradeID:   trade.TradeID,
			AgentID:   agent.AgentID,
			Recipient: domain.PayoutCreator,
			Address:   agent.Creator,
			Amount:    trade.CreatorFee,
			Status:    domain.PayoutPending,
			CreatedAt: trade.ExecutedAt,
			UpdatedAt: trade.ExecutedAt,
		})
	}
	if trade.PlatformFee > 0 {
		payouts = append(payouts, &domain.FeePayout{
			PayoutID:  idhash.ComputePayoutID(trade.TradeID, domain.PayoutPlatform),
			TradeID:   trade.TradeID,
			AgentID:   agent.AgentID,
			Recipient: domain.PayoutPlatform,
			Address:   e.platformAddress,
			Amount:    trade.PlatformFee,
			Status:    domain.PayoutPending,
			CreatedAt: trade.ExecutedAt,
			UpdatedAt: trade.ExecutedAt,
		})
	}
	if e.metrics != nil {
		e.metrics.PayoutsCreated.Add(float64(len(payouts)))
	}
	return payouts
}

// afterCommit runs the non-critical post-commit side effects: chart tick,
// sink notification, graduation signal. None of them can fail the trade.
func (e *Executor) afterCommit(trade *domain.TradeRecord, state domain.CurveState, cfg domain.CurveConfig) {
	if e.ticks != nil {
		tick := &domain.PriceTick{
			AgentID:     trade.AgentID,
			TimestampMs: trade.ExecutedAt,
			Price:       trade.PriceAfter,
			Side:        trade.Side,
			Amount:      trade.GrossAmount,
			TokensDelta: trade.TokensDelta,
		}
		// Detached context: the trade is already committed and the caller
		// may be gone.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := e.ticks.Insert(ctx, tick); err != nil {
			e.logger.Printf("price tick insert failed for agent %s: %v", trade.AgentID, err)
		}
		cancel()
	}

	if e.sink != nil {
		e.sink.TradeExecuted(trade)
	}

	if e.onEligible != nil && curve.CanGraduate(cfg, state) {
		if e.metrics != nil {
			e.metrics.GraduationSignals.Inc()
		}
		go e.onEligible(trade.AgentID)
	}
}

func (e *Executor) reject(side string, err error) error {
	if e.metrics != nil {
		e.metrics.TradesTotal.WithLabelValues(side, "rejected").Inc()
	}
	return err
}
