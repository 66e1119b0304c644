package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agent-curve-engine/internal/domain"
	"agent-curve-engine/internal/engine"
	"agent-curve-engine/internal/graduation"
	"agent-curve-engine/internal/quote"
	"agent-curve-engine/internal/storage/memory"
)

const (
	creator = "0x1111111111111111111111111111111111111111"
	holder  = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
)

func newTestRouter(t *testing.T) (http.Handler, *memory.AgentStore, *memory.PositionStore) {
	t.Helper()
	agents := memory.NewAgentStore()
	positions := memory.NewPositionStore()
	trades := memory.NewTradeRecordStore()
	payouts := memory.NewPayoutStore()
	ticks := memory.NewPriceTickStore()
	events := memory.NewGraduationEventStore()

	srv := NewServer(Options{
		Agents: agents,
		Trades: trades,
		Ticks:  ticks,
		Quotes: quote.NewService(quote.Options{Agents: agents, Positions: positions}),
		Engine: engine.NewExecutor(engine.Options{
			Agents:          agents,
			Positions:       positions,
			Ledger:          memory.NewLedger(agents, positions, trades, payouts),
			Ticks:           ticks,
			PlatformAddress: "0xffffffffffffffffffffffffffffffffffffffff",
		}),
		Graduations: graduation.NewManager(graduation.Options{
			Agents: agents, Positions: positions, Events: events,
		}),
	})
	return srv.Router(), agents, positions
}

func seedAgent(t *testing.T, agents *memory.AgentStore, state domain.CurveState) {
	t.Helper()
	err := agents.Insert(context.Background(), &domain.Agent{
		AgentID: "agent1",
		Creator: creator,
		Name:    "Test Agent",
		Symbol:  "TST",
		Config: domain.CurveConfig{
			StartPrice:        0.00004,
			EndPrice:          0.0003,
			TradeableCap:      248_000_000,
			GraduationReserve: 42_000,
			TradingFeeBps:     500,
			CreatorShareBps:   4000,
			PlatformShareBps:  4000,
		},
		State: state,
	})
	require.NoError(t, err)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestCreateAgent(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/v1/agents", map[string]any{
		"creator": creator,
		"name":    "Test Agent",
		"symbol":  "TST",
		"config": map[string]any{
			"startPrice":        0.00004,
			"endPrice":          0.0003,
			"tradeableCap":      248_000_000,
			"graduationReserve": 42_000,
			"tradingFeeBps":     500,
			"creatorShareBps":   4000,
			"platformShareBps":  4000,
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[map[string]any](t, rec)
	assert.NotEmpty(t, resp["agentId"])
	assert.Equal(t, "active", resp["phase"])
	assert.InDelta(t, 0.00004, resp["currentPrice"].(float64), 1e-12)
}

func TestCreateAgent_Invalid(t *testing.T) {
	router, _, _ := newTestRouter(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"bad creator", map[string]any{"creator": "not-an-address", "name": "A", "symbol": "A"}},
		{"missing name", map[string]any{"creator": creator, "symbol": "A"}},
		{
			"fee shares over 100%",
			map[string]any{
				"creator": creator, "name": "A", "symbol": "A",
				"config": map[string]any{
					"startPrice": 0.00004, "endPrice": 0.0003,
					"tradeableCap": 1_000_000, "graduationReserve": 42_000,
					"tradingFeeBps": 500, "creatorShareBps": 6000, "platformShareBps": 6000,
				},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/v1/agents", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestCreateAgent_Duplicate(t *testing.T) {
	router, agents, _ := newTestRouter(t)
	seedAgent(t, agents, domain.CurveState{Phase: domain.PhaseActive})

	rec := doJSON(t, router, http.MethodPost, "/v1/agents", map[string]any{
		"agentId": "agent1", "creator": creator, "name": "Dup", "symbol": "DUP",
		"config": map[string]any{
			"startPrice": 0.00004, "endPrice": 0.0003,
			"tradeableCap": 1_000_000, "graduationReserve": 42_000,
			"tradingFeeBps": 500, "creatorShareBps": 4000, "platformShareBps": 4000,
		},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decode[errorResponse](t, rec)
	assert.Equal(t, "DUPLICATE", resp.Error)
}

func TestGetAgent(t *testing.T) {
	router, agents, _ := newTestRouter(t)
	seedAgent(t, agents, domain.CurveState{ReserveRaised: 21_000, Phase: domain.PhaseActive})

	rec := doJSON(t, router, http.MethodGet, "/v1/agents/agent1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[map[string]any](t, rec)
	assert.InDelta(t, 50, resp["graduationProgress"].(float64), 1e-9)

	rec = doJSON(t, router, http.MethodGet, "/v1/agents/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestQuoteEndpoint(t *testing.T) {
	router, agents, _ := newTestRouter(t)
	seedAgent(t, agents, domain.CurveState{Phase: domain.PhaseActive})

	rec := doJSON(t, router, http.MethodPost, "/v1/quote", map[string]any{
		"agentId": "agent1", "action": "buy", "amount": 10_000,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[quoteResponse](t, rec)
	assert.True(t, resp.Valid)
	assert.InDelta(t, 500, resp.Fee, 1e-9)
	assert.Greater(t, resp.AmountOut, 0.0)

	// Rejections stay 200 with valid=false and a stable code.
	rec = doJSON(t, router, http.MethodPost, "/v1/quote", map[string]any{
		"agentId": "agent1", "action": "buy", "amount": -1,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decode[quoteResponse](t, rec)
	assert.False(t, resp.Valid)
	assert.Equal(t, "INVALID_AMOUNT", resp.Error)
}

func TestTradeEndpoint(t *testing.T) {
	router, agents, _ := newTestRouter(t)
	seedAgent(t, agents, domain.CurveState{Phase: domain.PhaseActive})

	rec := doJSON(t, router, http.MethodPost, "/v1/trade", map[string]any{
		"agentId": "agent1", "holderId": holder, "action": "buy", "amount": 10_000,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[tradeResponse](t, rec)
	require.True(t, resp.Success)
	require.NotNil(t, resp.Trade)
	assert.InDelta(t, 9500, resp.Trade.NetAmount, 1e-9)
	assert.NotEmpty(t, resp.Trade.TradeID)
}

func TestTradeEndpoint_Errors(t *testing.T) {
	router, agents, _ := newTestRouter(t)
	seedAgent(t, agents, domain.CurveState{Phase: domain.PhaseActive})

	tests := []struct {
		name       string
		body       map[string]any
		wantStatus int
		wantCode   string
	}{
		{
			"unknown agent",
			map[string]any{"agentId": "ghost", "holderId": holder, "action": "buy", "amount": 100},
			http.StatusNotFound, "AGENT_NOT_FOUND",
		},
		{
			"invalid amount",
			map[string]any{"agentId": "agent1", "holderId": holder, "action": "buy", "amount": 0},
			http.StatusBadRequest, "INVALID_AMOUNT",
		},
		{
			"sell without balance",
			map[string]any{"agentId": "agent1", "holderId": holder, "action": "sell", "amount": 100},
			http.StatusBadRequest, "INSUFFICIENT_BALANCE",
		},
		{
			"slippage",
			map[string]any{"agentId": "agent1", "holderId": holder, "action": "buy", "amount": 100, "minOut": 1e15},
			http.StatusBadRequest, "SLIPPAGE_EXCEEDED",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/v1/trade", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decode[tradeResponse](t, rec)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantCode, resp.Error)
		})
	}
}

func TestTradeEndpoint_GraduatedAgent(t *testing.T) {
	router, agents, _ := newTestRouter(t)
	seedAgent(t, agents, domain.CurveState{
		SharesSold: 1000, ReserveRaised: 100, Phase: domain.PhaseGraduating,
	})

	rec := doJSON(t, router, http.MethodPost, "/v1/trade", map[string]any{
		"agentId": "agent1", "holderId": holder, "action": "buy", "amount": 100,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decode[tradeResponse](t, rec)
	assert.Equal(t, "AGENT_NOT_ACTIVE", resp.Error)
}

func TestGraduationEndpoints(t *testing.T) {
	router, agents, positions := newTestRouter(t)
	seedAgent(t, agents, domain.CurveState{
		SharesSold:    200_000_000,
		ReserveRaised: 42_500,
		Phase:         domain.PhaseActive,
	})
	require.NoError(t, positions.Upsert(context.Background(), &domain.Position{
		AgentID: "agent1", HolderID: holder, TokenBalance: 200_000_000,
	}))

	rec := doJSON(t, router, http.MethodPost, "/v1/graduation/check", agentIDRequest{AgentID: "agent1"})
	require.Equal(t, http.StatusOK, rec.Code)
	check := decode[checkResponse](t, rec)
	assert.True(t, check.Eligible)
	assert.InDelta(t, 42_000, check.Threshold, 1e-9)

	rec = doJSON(t, router, http.MethodPost, "/v1/graduation/graduate", agentIDRequest{AgentID: "agent1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	grad := decode[graduateResponse](t, rec)
	assert.True(t, grad.Success)
	assert.Equal(t, "completed", grad.Status)
	assert.Equal(t, 1, grad.HolderCount)

	// Second graduate conflicts.
	rec = doJSON(t, router, http.MethodPost, "/v1/graduation/graduate", agentIDRequest{AgentID: "agent1"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	errResp := decode[errorResponse](t, rec)
	assert.Equal(t, "ALREADY_GRADUATED", errResp.Error)

	rec = doJSON(t, router, http.MethodGet, "/v1/graduation/status?agentId=agent1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[statusResponse](t, rec)
	assert.True(t, status.IsGraduated)
	assert.Equal(t, "completed", status.Status)
	require.NotNil(t, status.Event)
	assert.Len(t, status.Event.HolderSnapshot, 1)
}

func TestGraduateNotEligible(t *testing.T) {
	router, agents, _ := newTestRouter(t)
	seedAgent(t, agents, domain.CurveState{ReserveRaised: 10, Phase: domain.PhaseActive})

	rec := doJSON(t, router, http.MethodPost, "/v1/graduation/graduate", agentIDRequest{AgentID: "agent1"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decode[errorResponse](t, rec)
	assert.Equal(t, "NOT_ELIGIBLE", resp.Error)
}

func TestListTicksAfterTrade(t *testing.T) {
	router, agents, _ := newTestRouter(t)
	seedAgent(t, agents, domain.CurveState{Phase: domain.PhaseActive})

	rec := doJSON(t, router, http.MethodPost, "/v1/trade", map[string]any{
		"agentId": "agent1", "holderId": holder, "action": "buy", "amount": 1000,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/v1/agents/agent1/ticks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ticks := decode[[]tickBody](t, rec)
	require.Len(t, ticks, 1)
	assert.Greater(t, ticks[0].Price, 0.0)
	assert.Equal(t, "buy", ticks[0].Side)
}

func TestHealthz(t *testing.T) {
	router, _, _ := newTestRouter(t)
	rec := doJSON(t, router, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
