package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"agent-curve-engine/internal/domain"
	"agent-curve-engine/internal/storage"
)

type curveConfigBody struct {
	StartPrice        float64 `json:"startPrice"`
	EndPrice          float64 `json:"endPrice"`
	TradeableCap      float64 `json:"tradeableCap"`
	GraduationReserve float64 `json:"graduationReserve"`
	TradingFeeBps     int64   `json:"tradingFeeBps"`
	CreatorShareBps   int64   `json:"creatorShareBps"`
	PlatformShareBps  int64   `json:"platformShareBps"`
}

type createAgentRequest struct {
	AgentID string          `json:"agentId,omitempty"`
	Creator string          `json:"creator"`
	Name    string          `json:"name"`
	Symbol  string          `json:"symbol"`
	Config  curveConfigBody `json:"config"`
}

type agentResponse struct {
	AgentID            string          `json:"agentId"`
	Creator            string          `json:"creator"`
	Name               string          `json:"name"`
	Symbol             string          `json:"symbol"`
	Config             curveConfigBody `json:"config"`
	SharesSold         float64         `json:"sharesSold"`
	ReserveRaised      float64         `json:"reserveRaised"`
	Phase              string          `json:"phase"`
	CurrentPrice       float64         `json:"currentPrice"`
	GraduationProgress float64         `json:"graduationProgress"`
	CreatedAt          int64           `json:"createdAt"`
}

type quoteRequest struct {
	AgentID  string  `json:"agentId"`
	Action   string  `json:"action"` // "buy" | "sell"
	Amount   float64 `json:"amount"`
	HolderID string  `json:"holderId,omitempty"`
}

type quoteResponse struct {
	Valid                   bool    `json:"valid"`
	Error                   string  `json:"error,omitempty"`
	AmountIn                float64 `json:"amountIn"`
	AmountOut               float64 `json:"amountOut"`
	Fee                     float64 `json:"fee"`
	CreatorFee              float64 `json:"creatorFee"`
	PlatformFee             float64 `json:"platformFee"`
	LPFee                   float64 `json:"lpFee"`
	AvgPrice                float64 `json:"avgPrice"`
	PriceBefore             float64 `json:"priceBefore"`
	NewPrice                float64 `json:"newPrice"`
	PriceImpact             float64 `json:"priceImpact"`
	CappedByCurve           bool    `json:"cappedByCurve"`
	GraduationProgressAfter float64 `json:"graduationProgressAfter"`
}

type tradeRequest struct {
	AgentID  string  `json:"agentId"`
	HolderID string  `json:"holderId"`
	Action   string  `json:"action"`
	Amount   float64 `json:"amount"`
	MinOut   float64 `json:"minOut,omitempty"`
}

type tradeBody struct {
	TradeID       string  `json:"tradeId"`
	AgentID       string  `json:"agentId"`
	HolderID      string  `json:"holderId"`
	Side          string  `json:"side"`
	GrossAmount   float64 `json:"grossAmount"`
	NetAmount     float64 `json:"netAmount"`
	TokensDelta   float64 `json:"tokensDelta"`
	Fee           float64 `json:"fee"`
	CreatorFee    float64 `json:"creatorFee"`
	PlatformFee   float64 `json:"platformFee"`
	LPFee         float64 `json:"lpFee"`
	PriceBefore   float64 `json:"priceBefore"`
	PriceAfter    float64 `json:"priceAfter"`
	AvgPrice      float64 `json:"avgPrice"`
	SharesSold    float64 `json:"sharesSold"`
	ReserveRaised float64 `json:"reserveRaised"`
	ExecutedAt    int64   `json:"executedAt"`
}

type tradeResponse struct {
	Success bool       `json:"success"`
	Trade   *tradeBody `json:"trade,omitempty"`
	Error   string     `json:"error,omitempty"`
}

type agentIDRequest struct {
	AgentID string `json:"agentId"`
}

type checkResponse struct {
	Eligible      bool    `json:"eligible"`
	ReserveRaised float64 `json:"reserveRaised"`
	Threshold     float64 `json:"threshold"`
	Remaining     float64 `json:"remaining"`
}

type graduationEventBody struct {
	EventID           string               `json:"eventId"`
	AgentID           string               `json:"agentId"`
	ReserveAtEvent    float64              `json:"reserveAtEvent"`
	SharesSoldAtEvent float64              `json:"sharesSoldAtEvent"`
	HolderSnapshot    []holderSnapshotBody `json:"holderSnapshot"`
	Status            string               `json:"status"`
	Attempts          int                  `json:"attempts"`
	CreatedAt         int64                `json:"createdAt"`
}

type holderSnapshotBody struct {
	HolderID   string  `json:"holder"`
	Balance    float64 `json:"balance"`
	Percentage float64 `json:"percentage"`
}

type graduateResponse struct {
	Success     bool                 `json:"success"`
	Status      string               `json:"status"`
	Phase       string               `json:"phase"`
	HolderCount int                  `json:"holderCount"`
	Event       *graduationEventBody `json:"event,omitempty"`
}

type statusResponse struct {
	IsGraduated bool                 `json:"isGraduated"`
	Phase       string               `json:"phase"`
	Status      string               `json:"status,omitempty"`
	Event       *graduationEventBody `json:"event,omitempty"`
}

type tickBody struct {
	Timestamp   int64   `json:"timestamp"`
	Price       float64 `json:"price"`
	Side        string  `json:"side"`
	Amount      float64 `json:"amount"`
	TokensDelta float64 `json:"tokensDelta"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func tradeToBody(t *domain.TradeRecord) *tradeBody {
	return &tradeBody{
		TradeID:       t.TradeID,
		AgentID:       t.AgentID,
		HolderID:      t.HolderID,
		Side:          t.Side,
		GrossAmount:   t.GrossAmount,
		NetAmount:     t.NetAmount,
		TokensDelta:   t.TokensDelta,
		Fee:           t.Fee,
		CreatorFee:    t.CreatorFee,
		PlatformFee:   t.PlatformFee,
		LPFee:         t.LPFee,
		PriceBefore:   t.PriceBefore,
		PriceAfter:    t.PriceAfter,
		AvgPrice:      t.AvgPrice,
		SharesSold:    t.SharesSold,
		ReserveRaised: t.ReserveRaised,
		ExecutedAt:    t.ExecutedAt,
	}
}

func eventToBody(e *domain.GraduationEvent) *graduationEventBody {
	body := &graduationEventBody{
		EventID:           e.EventID,
		AgentID:           e.AgentID,
		ReserveAtEvent:    e.ReserveAtEvent,
		SharesSoldAtEvent: e.SharesSoldAtEvent,
		Status:            e.Status,
		Attempts:          e.Attempts,
		CreatedAt:         e.CreatedAt,
	}
	for _, h := range e.HolderSnapshot {
		body.HolderSnapshot = append(body.HolderSnapshot, holderSnapshotBody(h))
	}
	return body
}

// errorCode maps storage sentinels ahead of the domain taxonomy so that a
// version conflict surfaces as PERSISTENCE_CONFLICT and not INTERNAL.
func errorCode(err error) string {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return "AGENT_NOT_FOUND"
	case errors.Is(err, storage.ErrDuplicateKey):
		return "DUPLICATE"
	case errors.Is(err, storage.ErrVersionConflict):
		return "PERSISTENCE_CONFLICT"
	case errors.Is(err, storage.ErrInvalidInput):
		return "INVALID_INPUT"
	default:
		return domain.ErrorCode(err)
	}
}

func httpStatus(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrDuplicateKey),
		errors.Is(err, storage.ErrVersionConflict),
		errors.Is(err, domain.ErrNotActive),
		errors.Is(err, domain.ErrAlreadyGraduated),
		errors.Is(err, domain.ErrNotEligible):
		return http.StatusConflict
	case errors.Is(err, storage.ErrInvalidInput),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrAmountTooSmall),
		errors.Is(err, domain.ErrInsufficientBalance),
		errors.Is(err, domain.ErrInsufficientLiquidity),
		errors.Is(err, domain.ErrCurveAtCapacity),
		errors.Is(err, domain.ErrSlippageExceeded):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps err to a transport status and a stable code. Validation
// errors carry the sentinel text; unexpected errors never leak internals.
func writeError(w http.ResponseWriter, err error) {
	status := httpStatus(err)
	resp := errorResponse{Error: errorCode(err)}
	if status != http.StatusInternalServerError {
		resp.Message = err.Error()
	}
	writeJSON(w, status, resp)
}
