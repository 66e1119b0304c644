package domain

import "errors"

// Trading rejections. Every surface (quote, execution, graduation, HTTP)
// maps these to the same stable wire codes via ErrorCode.
var (
	// ErrInvalidAmount rejects non-positive or non-finite trade amounts.
	ErrInvalidAmount = errors.New("trade amount must be a positive number")

	// ErrAmountTooSmall rejects trades whose output rounds to zero after fees.
	ErrAmountTooSmall = errors.New("amount too small after fees")

	// ErrInsufficientBalance rejects sells exceeding the holder's position.
	ErrInsufficientBalance = errors.New("sell amount exceeds holder balance")

	// ErrInsufficientLiquidity rejects sells whose payout would exceed the
	// reserve held by the curve. A negative-reserve curve must never occur.
	ErrInsufficientLiquidity = errors.New("payout exceeds curve reserve")

	// ErrCurveAtCapacity rejects buys when the tradeable supply is exhausted.
	ErrCurveAtCapacity = errors.New("tradeable supply exhausted")

	// ErrSlippageExceeded rejects execution when the recomputed output is
	// worse than the caller's minimum.
	ErrSlippageExceeded = errors.New("output below caller minimum")

	// ErrNotActive rejects trading once the phase left active.
	ErrNotActive = errors.New("agent is not trading on the curve")

	// ErrAlreadyGraduated rejects a second graduation.
	ErrAlreadyGraduated = errors.New("agent already graduated")

	// ErrNotEligible rejects graduation below the reserve threshold.
	ErrNotEligible = errors.New("reserve below graduation threshold")

	// ErrDownstream marks a failed non-critical side effect (payout delivery,
	// liquidity migration handoff). Never rolls back the committed operation.
	ErrDownstream = errors.New("downstream handoff failed")
)

// ErrorCode returns the stable wire code for a trading rejection.
// Unknown errors map to INTERNAL.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return "INVALID_AMOUNT"
	case errors.Is(err, ErrAmountTooSmall):
		return "AMOUNT_TOO_SMALL"
	case errors.Is(err, ErrInsufficientBalance):
		return "INSUFFICIENT_BALANCE"
	case errors.Is(err, ErrInsufficientLiquidity):
		return "INSUFFICIENT_LIQUIDITY"
	case errors.Is(err, ErrCurveAtCapacity):
		return "CURVE_AT_CAPACITY"
	case errors.Is(err, ErrSlippageExceeded):
		return "SLIPPAGE_EXCEEDED"
	case errors.Is(err, ErrNotActive):
		return "AGENT_NOT_ACTIVE"
	case errors.Is(err, ErrAlreadyGraduated):
		return "ALREADY_GRADUATED"
	case errors.Is(err, ErrNotEligible):
		return "NOT_ELIGIBLE"
	case errors.Is(err, ErrDownstream):
		return "DOWNSTREAM_FAILURE"
	default:
		return "INTERNAL"
	}
}
