package domain

// Phase describes where an agent's token currently trades.
// Transitions are forward-only: active -> graduating -> graduated.
type Phase string

const (
	// PhaseActive means the token trades against the bonding curve.
	PhaseActive Phase = "active"
	// PhaseGraduating means the graduation threshold was reached and curve
	// trading is halted while the liquidity migration is in flight.
	PhaseGraduating Phase = "graduating"
	// PhaseGraduated means liquidity has moved to the external DEX pool.
	PhaseGraduated Phase = "graduated"
)

// CurveConfig holds the immutable bonding-curve parameters of an agent.
// Set once at creation and never mutated afterwards. Prices are linear-
// interpolated between StartPrice and EndPrice over [0, TradeableCap].
type CurveConfig struct {
	StartPrice        float64 // price at zero shares sold
	EndPrice          float64 // price at full tradeable supply
	TradeableCap      float64 // token units sellable via the curve
	GraduationReserve float64 // net reserve required to graduate
	TradingFeeBps     int64   // fee on the gross trade amount, basis points
	CreatorShareBps   int64   // creator share of the fee, basis points of the fee
	PlatformShareBps  int64   // platform share of the fee, basis points of the fee
}

// LPShareBps returns the residual fee share retained by the curve as
// liquidity reserve. Zero when creator and platform split the whole fee.
func (c CurveConfig) LPShareBps() int64 {
	return 10000 - c.CreatorShareBps - c.PlatformShareBps
}

// CurveState is the mutable trading state of an agent.
type CurveState struct {
	SharesSold    float64 // cumulative tokens issued by the curve
	ReserveRaised float64 // cumulative net reserve held by the curve
	Phase         Phase
}

// Agent couples an identity with its curve config and state.
// Version is an optimistic-concurrency counter bumped on every state write.
type Agent struct {
	AgentID   string
	Creator   string // creator address (0x-prefixed hex)
	Name      string
	Symbol    string
	Config    CurveConfig
	State     CurveState
	Version   int64
	CreatedAt int64 // unix ms
	UpdatedAt int64 // unix ms
}
