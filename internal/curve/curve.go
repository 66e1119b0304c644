// Package curve implements the bonding-curve pricing math: spot price,
// buy/sell returns, fee splitting and graduation progress. Everything here is
// pure; persistence and sequencing live in the engine.
package curve

import (
	"fmt"
	"math"

	"agent-curve-engine/internal/domain"
)

// flatSlopeEpsilon is the slope below which the curve is treated as flat and
// the quadratic solve degrades to simple division, avoiding instability.
const flatSlopeEpsilon = 1e-15

// reserveSlack absorbs float rounding when a sell unwinds the curve exactly
// to empty; without it an exact round trip can overshoot the reserve by one
// ulp and be spuriously rejected. The engine clamps the reserve at zero.
const reserveSlack = 1e-6

// ValidateConfig checks a CurveConfig at agent creation time.
// Configs are immutable, so nothing else ever needs to re-validate.
func ValidateConfig(cfg domain.CurveConfig) error {
	switch {
	case !isFinite(cfg.StartPrice) || cfg.StartPrice <= 0:
		return fmt.Errorf("start price must be positive, got %v", cfg.StartPrice)
	case !isFinite(cfg.EndPrice) || cfg.EndPrice < cfg.StartPrice:
		return fmt.Errorf("end price must be >= start price, got %v < %v", cfg.EndPrice, cfg.StartPrice)
	case !isFinite(cfg.TradeableCap) || cfg.TradeableCap <= 0:
		return fmt.Errorf("tradeable cap must be positive, got %v", cfg.TradeableCap)
	case !isFinite(cfg.GraduationReserve) || cfg.GraduationReserve <= 0:
		return fmt.Errorf("graduation reserve must be positive, got %v", cfg.GraduationReserve)
	case cfg.TradingFeeBps < 0 || cfg.TradingFeeBps >= 10000:
		return fmt.Errorf("trading fee must be in [0, 10000) bps, got %d", cfg.TradingFeeBps)
	case cfg.CreatorShareBps < 0 || cfg.PlatformShareBps < 0:
		return fmt.Errorf("fee shares must be non-negative, got creator=%d platform=%d", cfg.CreatorShareBps, cfg.PlatformShareBps)
	case cfg.CreatorShareBps+cfg.PlatformShareBps > 10000:
		return fmt.Errorf("creator+platform fee shares exceed 10000 bps, got %d", cfg.CreatorShareBps+cfg.PlatformShareBps)
	}
	return nil
}

// Slope returns the price increase per token sold.
func Slope(cfg domain.CurveConfig) float64 {
	return (cfg.EndPrice - cfg.StartPrice) / cfg.TradeableCap
}

// PriceAt evaluates the linear curve at a given cumulative sharesSold.
// Shares beyond the tradeable cap price at EndPrice.
func PriceAt(cfg domain.CurveConfig, sharesSold float64) float64 {
	if sharesSold <= 0 {
		return cfg.StartPrice
	}
	if sharesSold >= cfg.TradeableCap {
		return cfg.EndPrice
	}
	return cfg.StartPrice + (cfg.EndPrice-cfg.StartPrice)*sharesSold/cfg.TradeableCap
}

// CurrentPrice evaluates the curve at the state's sharesSold.
func CurrentPrice(cfg domain.CurveConfig, state domain.CurveState) float64 {
	return PriceAt(cfg, state.SharesSold)
}

// BuyReturn is the result of pricing a buy of GrossAmountIn reserve units.
type BuyReturn struct {
	TokensOut   float64
	Fee         float64
	NetAmountIn float64
	PriceStart  float64
	PriceEnd    float64
	AvgPrice    float64
	Capped      bool // tokensOut clamped to the remaining tradeable supply
}

// CalculateBuyReturn prices a buy. The fee is taken from the gross amount;
// the net amount is then matched against the integral of the price curve,
// which for a linear curve is quadratic in tokensOut:
//
//	(slope/2)*t^2 + priceStart*t - netAmountIn = 0
//
// solved with the positive root. TokensOut is clamped to the remaining
// tradeable supply and the clamp is reported via Capped.
func CalculateBuyReturn(cfg domain.CurveConfig, state domain.CurveState, grossAmountIn float64) (BuyReturn, error) {
	if !isFinite(grossAmountIn) || grossAmountIn <= 0 {
		return BuyReturn{}, domain.ErrInvalidAmount
	}
	remaining := cfg.TradeableCap - state.SharesSold
	if remaining <= 0 {
		return BuyReturn{}, domain.ErrCurveAtCapacity
	}

	fee := grossAmountIn * float64(cfg.TradingFeeBps) / 10000
	net := grossAmountIn - fee
	priceStart := CurrentPrice(cfg, state)

	slope := Slope(cfg)
	var tokensOut float64
	if math.Abs(slope) < flatSlopeEpsilon {
		tokensOut = net / priceStart
	} else {
		// Positive root of (slope/2)*t^2 + priceStart*t - net = 0.
		disc := priceStart*priceStart + 2*slope*net
		tokensOut = (-priceStart + math.Sqrt(disc)) / slope
	}
	if !isFinite(tokensOut) || tokensOut <= 0 {
		return BuyReturn{}, domain.ErrAmountTooSmall
	}

	capped := false
	if tokensOut > remaining {
		tokensOut = remaining
		capped = true
	}

	priceEnd := PriceAt(cfg, state.SharesSold+tokensOut)
	return BuyReturn{
		TokensOut:   tokensOut,
		Fee:         fee,
		NetAmountIn: net,
		PriceStart:  priceStart,
		PriceEnd:    priceEnd,
		AvgPrice:    (priceStart + priceEnd) / 2,
		Capped:      capped,
	}, nil
}

// SellReturn is the result of pricing a sell of TokensIn tokens.
type SellReturn struct {
	GrossAmountOut float64
	Fee            float64
	NetAmountOut   float64
	PriceStart     float64
	PriceEnd       float64
	AvgPrice       float64
}

// CalculateSellReturn prices a sell. For a linear curve the average of the
// endpoint prices is the exact mean value of the integral, so
// grossAmountOut = tokensIn * avgPrice. The fee is taken from the gross
// payout. A payout exceeding the curve's reserve is rejected: the reserve
// must never go negative.
func CalculateSellReturn(cfg domain.CurveConfig, state domain.CurveState, tokensIn float64) (SellReturn, error) {
	if !isFinite(tokensIn) || tokensIn <= 0 {
		return SellReturn{}, domain.ErrInvalidAmount
	}
	if tokensIn > state.SharesSold {
		return SellReturn{}, domain.ErrInsufficientLiquidity
	}

	priceStart := CurrentPrice(cfg, state)
	priceEnd := PriceAt(cfg, state.SharesSold-tokensIn)
	avg := (priceStart + priceEnd) / 2

	gross := tokensIn * avg
	fee := gross * float64(cfg.TradingFeeBps) / 10000
	net := gross - fee
	if net <= 0 {
		return SellReturn{}, domain.ErrAmountTooSmall
	}
	if gross > state.ReserveRaised+reserveSlack {
		return SellReturn{}, domain.ErrInsufficientLiquidity
	}

	return SellReturn{
		GrossAmountOut: gross,
		Fee:            fee,
		NetAmountOut:   net,
		PriceStart:     priceStart,
		PriceEnd:       priceEnd,
		AvgPrice:       avg,
	}, nil
}

// FeeSplit is the per-recipient breakdown of one trade's fee.
// Creator + Platform + LP always reassembles the full fee.
type FeeSplit struct {
	Creator  float64
	Platform float64
	LP       float64
}

// SplitFee distributes a fee between creator, platform and the residual
// liquidity-reserve share.
func SplitFee(cfg domain.CurveConfig, fee float64) FeeSplit {
	creator := fee * float64(cfg.CreatorShareBps) / 10000
	platform := fee * float64(cfg.PlatformShareBps) / 10000
	return FeeSplit{
		Creator:  creator,
		Platform: platform,
		LP:       fee - creator - platform,
	}
}

// CanGraduate reports whether the raised reserve has met the threshold.
func CanGraduate(cfg domain.CurveConfig, state domain.CurveState) bool {
	return state.ReserveRaised >= cfg.GraduationReserve
}

// GraduationProgress returns progress toward the threshold in percent,
// capped at 100.
func GraduationProgress(cfg domain.CurveConfig, state domain.CurveState) float64 {
	return ProgressAt(cfg, state.ReserveRaised)
}

// ProgressAt returns the graduation progress for an arbitrary reserve level.
func ProgressAt(cfg domain.CurveConfig, reserveRaised float64) float64 {
	if reserveRaised <= 0 {
		return 0
	}
	p := 100 * reserveRaised / cfg.GraduationReserve
	if p > 100 {
		return 100
	}
	return p
}

// PriceImpact returns the percent change from priceBefore to priceAfter.
func PriceImpact(priceBefore, priceAfter float64) float64 {
	if priceBefore == 0 {
		return 0
	}
	return (priceAfter - priceBefore) / priceBefore * 100
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
