package domain

// Quote is the ephemeral result of a buy/sell preview. Never persisted and
// never trusted at execution time; the engine always recomputes.
type Quote struct {
	AgentID string
	Side    string // TradeBuy | TradeSell
	Valid   bool
	Error   string // stable rejection code when Valid is false

	// For buys: reserve in -> tokens out. For sells: tokens in -> reserve out.
	AmountIn  float64
	AmountOut float64

	Fee         float64
	CreatorFee  float64
	PlatformFee float64
	LPFee       float64

	PriceBefore   float64
	PriceAfter    float64
	AvgPrice      float64
	PriceImpact   float64 // percent change of spot price
	CappedByCurve bool    // buy was clamped to the remaining tradeable supply

	// GraduationProgressAfter is the progress toward the graduation
	// threshold if this quote were executed, in percent capped at 100.
	GraduationProgressAfter float64
}
