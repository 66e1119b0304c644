package domain

// Position tracks one holder's token balance for one agent.
// Created on first buy, updated on every trade, never deleted
// (the balance may legitimately reach zero).
type Position struct {
	AgentID      string
	HolderID     string // holder address (0x-prefixed hex)
	TokenBalance float64
	UpdatedAt    int64 // unix ms
}
