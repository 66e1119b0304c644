// Package quote prices buys and sells against an agent's live curve state
// without mutating anything. Quotes are previews: the engine recomputes from
// scratch at execution time, so a quote is never an entitlement.
package quote

import (
	"context"
	"errors"
	"fmt"

	"agent-curve-engine/internal/curve"
	"agent-curve-engine/internal/domain"
	"agent-curve-engine/internal/observability"
	"agent-curve-engine/internal/storage"
)

// Service computes trade previews. Read-only; safe to call with unlimited
// concurrency.
type Service struct {
	agents    storage.AgentStore
	positions storage.PositionStore
	metrics   *observability.Metrics
}

// Options contains configuration for creating a Service.
type Options struct {
	Agents    storage.AgentStore
	Positions storage.PositionStore
	Metrics   *observability.Metrics // optional
}

// NewService creates a quote service.
func NewService(opts Options) *Service {
	return &Service{
		agents:    opts.Agents,
		positions: opts.Positions,
		metrics:   opts.Metrics,
	}
}

// Quote prices a buy or sell preview. Trading rejections come back as an
// invalid Quote carrying the stable error code; a Go error means the agent
// was not found or storage failed. HolderID is required for sells so the
// live balance can be checked, and ignored for buys.
func (s *Service) Quote(ctx context.Context, agentID, side string, amount float64, holderID string) (*domain.Quote, error) {
	if side != domain.TradeBuy && side != domain.TradeSell {
		return nil, fmt.Errorf("%w: unknown side %q", storage.ErrInvalidInput, side)
	}
	if side == domain.TradeSell && holderID == "" {
		return nil, fmt.Errorf("%w: sell quotes require a holder", storage.ErrInvalidInput)
	}

	agent, err := s.agents.GetByID(ctx, agentID)
	if err != nil {
		return nil, err
	}

	q, err := s.build(ctx, agent, side, amount, holderID)
	if err != nil {
		return nil, err
	}
	s.count(side, q)
	return q, nil
}

func (s *Service) build(ctx context.Context, agent *domain.Agent, side string, amount float64, holderID string) (*domain.Quote, error) {
	if agent.State.Phase != domain.PhaseActive {
		return s.rejected(agent.AgentID, side, domain.ErrNotActive), nil
	}

	if side == domain.TradeBuy {
		ret, err := curve.CalculateBuyReturn(agent.Config, agent.State, amount)
		if err != nil {
			return s.rejected(agent.AgentID, side, err), nil
		}
		split := curve.SplitFee(agent.Config, ret.Fee)
		return &domain.Quote{
			AgentID:       agent.AgentID,
			Side:          side,
			Valid:         true,
			AmountIn:      amount,
			AmountOut:     ret.TokensOut,
			Fee:           ret.Fee,
			CreatorFee:    split.Creator,
			PlatformFee:   split.Platform,
			LPFee:         split.LP,
			PriceBefore:   ret.PriceStart,
			PriceAfter:    ret.PriceEnd,
			AvgPrice:      ret.AvgPrice,
			PriceImpact:   curve.PriceImpact(ret.PriceStart, ret.PriceEnd),
			CappedByCurve: ret.Capped,
			GraduationProgressAfter: curve.ProgressAt(
				agent.Config, agent.State.ReserveRaised+ret.NetAmountIn),
		}, nil
	}

	// Sell: the holder must actually own what they are selling. This is an
	// authorization-adjacent invariant, not just a curve constraint.
	pos, err := s.positions.Get(ctx, agent.AgentID, holderID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return s.rejected(agent.AgentID, side, domain.ErrInsufficientBalance), nil
		}
		return nil, err
	}
	if amount > pos.TokenBalance {
		return s.rejected(agent.AgentID, side, domain.ErrInsufficientBalance), nil
	}

	ret, err := curve.CalculateSellReturn(agent.Config, agent.State, amount)
	if err != nil {
		return s.rejected(agent.AgentID, side, err), nil
	}
	split := curve.SplitFee(agent.Config, ret.Fee)
	reserveAfter := agent.State.ReserveRaised - ret.GrossAmountOut
	if reserveAfter < 0 {
		reserveAfter = 0
	}
	return &domain.Quote{
		AgentID:                 agent.AgentID,
		Side:                    side,
		Valid:                   true,
		AmountIn:                amount,
		AmountOut:               ret.NetAmountOut,
		Fee:                     ret.Fee,
		CreatorFee:              split.Creator,
		PlatformFee:             split.Platform,
		LPFee:                   split.LP,
		PriceBefore:             ret.PriceStart,
		PriceAfter:              ret.PriceEnd,
		AvgPrice:                ret.AvgPrice,
		PriceImpact:             curve.PriceImpact(ret.PriceStart, ret.PriceEnd),
		GraduationProgressAfter: curve.ProgressAt(agent.Config, reserveAfter),
	}, nil
}

func (s *Service) rejected(agentID, side string, err error) *domain.Quote {
	return &domain.Quote{
		AgentID: agentID,
		Side:    side,
		Valid:   false,
		Error:   domain.ErrorCode(err),
	}
}

func (s *Service) count(side string, q *domain.Quote) {
	if s.metrics == nil {
		return
	}
	result := "ok"
	if !q.Valid {
		result = "rejected"
	}
	s.metrics.QuotesTotal.WithLabelValues(side, result).Inc()
}
