package domain

// Graduation event statuses.
const (
	GraduationPending   = "pending"
	GraduationCompleted = "completed"
	GraduationFailed    = "failed"
)

// HolderSnapshot is one holder's balance captured at graduation time.
type HolderSnapshot struct {
	HolderID   string
	Balance    float64
	Percentage float64 // balance / sharesSold * 100
}

// GraduationEvent is created exactly once per agent when the reserve
// threshold is reached. It is written with status pending before the phase
// flip so a crash in between is recoverable, and drives the downstream
// liquidity migration.
type GraduationEvent struct {
	EventID           string // deterministic hash, see idhash
	AgentID           string
	ReserveAtEvent    float64
	SharesSoldAtEvent float64
	HolderSnapshot    []HolderSnapshot
	Status            string // pending | completed | failed
	Attempts          int    // downstream handoff attempts
	CreatedAt         int64  // unix ms
	UpdatedAt         int64  // unix ms
}
