package domain

// Fee payout recipients.
const (
	PayoutCreator  = "creator"
	PayoutPlatform = "platform"
)

// Fee payout statuses. Pending payouts are picked up by the reconciler;
// failed ones are retried with bounded attempts and abandoned after the cap.
const (
	PayoutPending   = "pending"
	PayoutCompleted = "completed"
	PayoutFailed    = "failed"
	PayoutAbandoned = "abandoned"
)

// FeePayout records one owed fee distribution. Payout delivery is a
// non-critical side effect of a trade: it may fail and be retried without
// touching the committed trade.
type FeePayout struct {
	PayoutID  string
	TradeID   string
	AgentID   string
	Recipient string // creator | platform
	Address   string // destination address (0x-prefixed hex)
	Amount    float64
	Status    string
	Attempts  int
	LastError string
	CreatedAt int64 // unix ms
	UpdatedAt int64 // unix ms
}

// PriceTick is one chart point recorded after a committed trade.
// Best-effort analytics data; losing a tick never fails a trade.
type PriceTick struct {
	AgentID     string
	TimestampMs int64
	Price       float64
	Side        string
	Amount      float64 // reserve units moved by the trade
	TokensDelta float64
}
