// Package idhash computes deterministic identifiers so that replaying the
// same logical operation yields the same ID instead of a duplicate row.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(agent|holder|side|gross|seq)
// where seq is the agent version the trade was executed against, which is
// unique per committed write. Returns hex-encoded hash (64 characters).
func ComputeTradeID(agentID, holderID, side string, grossAmount float64, seq int64) string {
	data := fmt.Sprintf("%s|%s|%s|%.12g|%d", agentID, holderID, side, grossAmount, seq)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeAgentID computes an agent ID from the creator, token symbol and
// creation time. A creator reusing a symbol in the same millisecond collides
// on purpose; the insert dedupes it.
func ComputeAgentID(creator, symbol string, createdAt int64) string {
	data := fmt.Sprintf("agent|%s|%s|%d", creator, symbol, createdAt)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// ComputeGraduationEventID computes a deterministic event ID for an agent's
// graduation. One graduation per agent, so the agent ID alone is the key.
func ComputeGraduationEventID(agentID string) string {
	hash := sha256.Sum256([]byte("graduation|" + agentID))
	return hex.EncodeToString(hash[:])
}

// ComputePayoutID computes a deterministic fee payout ID.
// Formula: SHA256(trade|recipient)
func ComputePayoutID(tradeID, recipient string) string {
	hash := sha256.Sum256([]byte(tradeID + "|" + recipient))
	return hex.EncodeToString(hash[:])
}
