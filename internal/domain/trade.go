package domain

// Trade sides.
const (
	TradeBuy  = "buy"
	TradeSell = "sell"
)

// TradeRecord is an append-only ledger entry for an executed curve trade.
// Immutable once written.
type TradeRecord struct {
	TradeID  string // deterministic hash, see idhash
	AgentID  string
	HolderID string
	Side     string // TradeBuy | TradeSell

	// Amounts in reserve units. For buys GrossAmount is the reserve paid in;
	// for sells NetAmount is the reserve paid out. TokensDelta is the token
	// quantity minted (buy) or burned (sell).
	GrossAmount float64
	NetAmount   float64
	TokensDelta float64

	// Fee breakdown in reserve units. Fee = CreatorFee + PlatformFee + LPFee.
	Fee         float64
	CreatorFee  float64
	PlatformFee float64
	LPFee       float64

	// Pricing.
	PriceBefore float64
	PriceAfter  float64
	AvgPrice    float64

	// Curve state after this trade committed.
	SharesSold    float64
	ReserveRaised float64

	ExecutedAt int64 // unix ms
}
