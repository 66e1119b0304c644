// Package main simulates a full token lifecycle on in-memory stores:
// repeated buys from a rotating set of holders until the agent graduates,
// printing the per-trade price path and the final graduation snapshot.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"agent-curve-engine/internal/domain"
	"agent-curve-engine/internal/engine"
	"agent-curve-engine/internal/graduation"
	"agent-curve-engine/internal/storage/memory"
)

func main() {
	startPrice := flag.Float64("start-price", 0.00004, "Price at zero shares sold")
	endPrice := flag.Float64("end-price", 0.0003, "Price at full tradeable supply")
	tradeableCap := flag.Float64("tradeable-cap", 248_000_000, "Tokens sellable via the curve")
	threshold := flag.Float64("graduation-reserve", 42_000, "Net reserve required to graduate")
	feeBps := flag.Int64("fee-bps", 500, "Trading fee, basis points of gross")
	creatorBps := flag.Int64("creator-share-bps", 4000, "Creator share of the fee, bps")
	platformBps := flag.Int64("platform-share-bps", 4000, "Platform share of the fee, bps")
	buyAmount := flag.Float64("buy-amount", 1_000, "Gross reserve amount per buy")
	holders := flag.Int("holders", 8, "Number of rotating buyers")
	maxTrades := flag.Int("max-trades", 100_000, "Abort if graduation is not reached")
	outputJSON := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	logger := log.New(os.Stderr, "[simulate] ", log.LstdFlags)
	ctx := context.Background()

	agents := memory.NewAgentStore()
	positions := memory.NewPositionStore()
	trades := memory.NewTradeRecordStore()
	payouts := memory.NewPayoutStore()
	ticks := memory.NewPriceTickStore()
	events := memory.NewGraduationEventStore()

	agent := &domain.Agent{
		AgentID: "sim-agent",
		Creator: "0x1111111111111111111111111111111111111111",
		Name:    "Simulated Agent",
		Symbol:  "SIM",
		Config: domain.CurveConfig{
			StartPrice:        *startPrice,
			EndPrice:          *endPrice,
			TradeableCap:      *tradeableCap,
			GraduationReserve: *threshold,
			TradingFeeBps:     *feeBps,
			CreatorShareBps:   *creatorBps,
			PlatformShareBps:  *platformBps,
		},
		State: domain.CurveState{Phase: domain.PhaseActive},
	}
	if err := agents.Insert(ctx, agent); err != nil {
		logger.Fatalf("Insert agent: %v", err)
	}

	graduations := graduation.NewManager(graduation.Options{
		Agents:    agents,
		Positions: positions,
		Events:    events,
	})
	executor := engine.NewExecutor(engine.Options{
		Agents:          agents,
		Positions:       positions,
		Ledger:          memory.NewLedger(agents, positions, trades, payouts),
		Ticks:           ticks,
		PlatformAddress: "0xffffffffffffffffffffffffffffffffffffffff",
	})

	if !*outputJSON {
		fmt.Printf("%-8s %-44s %14s %14s %14s %12s\n",
			"TRADE", "HOLDER", "GROSS", "TOKENS", "RESERVE", "PRICE")
	}

	var executed int
	for executed < *maxTrades {
		holder := fmt.Sprintf("0x%040x", executed%*holders+1)
		trade, err := executor.Execute(ctx, engine.ExecuteRequest{
			AgentID:  agent.AgentID,
			HolderID: holder,
			Side:     domain.TradeBuy,
			Amount:   *buyAmount,
		})
		if err != nil {
			if errors.Is(err, domain.ErrCurveAtCapacity) {
				// Supply exhausted before the reserve threshold; try to
				// graduate with whatever was raised.
				break
			}
			logger.Fatalf("Trade %d failed: %v", executed+1, err)
		}
		executed++

		if !*outputJSON {
			fmt.Printf("%-8d %-44s %14.2f %14.2f %14.2f %12.8f\n",
				executed, holder, trade.GrossAmount, trade.TokensDelta,
				trade.ReserveRaised, trade.PriceAfter)
		}

		current, err := agents.GetByID(ctx, agent.AgentID)
		if err != nil {
			logger.Fatalf("Reload agent: %v", err)
		}
		if current.State.ReserveRaised >= *threshold {
			break
		}
	}

	result, err := graduations.Graduate(ctx, agent.AgentID)
	if err != nil {
		logger.Fatalf("Graduation after %d trades: %v", executed, err)
	}

	final, err := agents.GetByID(ctx, agent.AgentID)
	if err != nil {
		logger.Fatalf("Reload agent: %v", err)
	}

	if *outputJSON {
		out := map[string]any{
			"trades":         executed,
			"sharesSold":     final.State.SharesSold,
			"reserveRaised":  final.State.ReserveRaised,
			"phase":          final.State.Phase,
			"holderCount":    result.HolderCount,
			"eventStatus":    result.Event.Status,
			"reserveAtEvent": result.Event.ReserveAtEvent,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			logger.Fatalf("Encode result: %v", err)
		}
		return
	}

	fmt.Printf("\nGraduated after %d trades: reserve=%.2f shares=%.2f phase=%s\n",
		executed, final.State.ReserveRaised, final.State.SharesSold, final.State.Phase)
	fmt.Printf("Holder snapshot (%d holders):\n", result.HolderCount)
	for _, h := range result.Event.HolderSnapshot {
		fmt.Printf("  %-44s %16.2f %7.2f%%\n", h.HolderID, h.Balance, h.Percentage)
	}
}
