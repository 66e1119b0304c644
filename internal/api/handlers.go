package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"agent-curve-engine/internal/curve"
	"agent-curve-engine/internal/domain"
	"agent-curve-engine/internal/engine"
	"agent-curve-engine/internal/idhash"
	"agent-curve-engine/internal/storage"
)

func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var req createAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, storage.ErrInvalidInput)
		return
	}
	if !common.IsHexAddress(req.Creator) {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "INVALID_INPUT",
			Message: "creator must be a hex address",
		})
		return
	}
	if req.Name == "" || req.Symbol == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "INVALID_INPUT",
			Message: "name and symbol are required",
		})
		return
	}

	cfg := domain.CurveConfig{
		StartPrice:        req.Config.StartPrice,
		EndPrice:          req.Config.EndPrice,
		TradeableCap:      req.Config.TradeableCap,
		GraduationReserve: req.Config.GraduationReserve,
		TradingFeeBps:     req.Config.TradingFeeBps,
		CreatorShareBps:   req.Config.CreatorShareBps,
		PlatformShareBps:  req.Config.PlatformShareBps,
	}
	if err := curve.ValidateConfig(cfg); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "INVALID_CONFIG",
			Message: err.Error(),
		})
		return
	}

	now := time.Now().UnixMilli()
	agent := &domain.Agent{
		AgentID:   req.AgentID,
		Creator:   req.Creator,
		Name:      req.Name,
		Symbol:    req.Symbol,
		Config:    cfg,
		State:     domain.CurveState{Phase: domain.PhaseActive},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if agent.AgentID == "" {
		agent.AgentID = idhash.ComputeAgentID(req.Creator, req.Symbol, now)
	}

	if err := s.agents.Insert(r.Context(), agent); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, agentToResponse(agent))
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := s.agents.GetByID(r.Context(), chi.URLParam(r, "agentID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agentToResponse(agent))
}

func agentToResponse(a *domain.Agent) *agentResponse {
	return &agentResponse{
		AgentID: a.AgentID,
		Creator: a.Creator,
		Name:    a.Name,
		Symbol:  a.Symbol,
		Config: curveConfigBody{
			StartPrice:        a.Config.StartPrice,
			EndPrice:          a.Config.EndPrice,
			TradeableCap:      a.Config.TradeableCap,
			GraduationReserve: a.Config.GraduationReserve,
			TradingFeeBps:     a.Config.TradingFeeBps,
			CreatorShareBps:   a.Config.CreatorShareBps,
			PlatformShareBps:  a.Config.PlatformShareBps,
		},
		SharesSold:         a.State.SharesSold,
		ReserveRaised:      a.State.ReserveRaised,
		Phase:              string(a.State.Phase),
		CurrentPrice:       curve.CurrentPrice(a.Config, a.State),
		GraduationProgress: curve.GraduationProgress(a.Config, a.State),
		CreatedAt:          a.CreatedAt,
	}
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, storage.ErrInvalidInput)
		return
	}

	q, err := s.quotes.Quote(r.Context(), req.AgentID, req.Action, req.Amount, req.HolderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &quoteResponse{
		Valid:                   q.Valid,
		Error:                   q.Error,
		AmountIn:                q.AmountIn,
		AmountOut:               q.AmountOut,
		Fee:                     q.Fee,
		CreatorFee:              q.CreatorFee,
		PlatformFee:             q.PlatformFee,
		LPFee:                   q.LPFee,
		AvgPrice:                q.AvgPrice,
		PriceBefore:             q.PriceBefore,
		NewPrice:                q.PriceAfter,
		PriceImpact:             q.PriceImpact,
		CappedByCurve:           q.CappedByCurve,
		GraduationProgressAfter: q.GraduationProgressAfter,
	})
}

func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, storage.ErrInvalidInput)
		return
	}
	if !common.IsHexAddress(req.HolderID) {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "INVALID_INPUT",
			Message: "holderId must be a hex address",
		})
		return
	}

	trade, err := s.engine.Execute(r.Context(), engine.ExecuteRequest{
		AgentID:  req.AgentID,
		HolderID: req.HolderID,
		Side:     req.Action,
		Amount:   req.Amount,
		MinOut:   req.MinOut,
	})
	if err != nil {
		status := httpStatus(err)
		resp := tradeResponse{Success: false, Error: errorCode(err)}
		writeJSON(w, status, resp)
		return
	}
	writeJSON(w, http.StatusOK, tradeResponse{Success: true, Trade: tradeToBody(trade)})
}

func (s *Server) handleListTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.trades.ListByAgent(r.Context(), chi.URLParam(r, "agentID"))
	if err != nil {
		writeError(w, err)
		return
	}
	body := make([]*tradeBody, 0, len(trades))
	for _, t := range trades {
		body = append(body, tradeToBody(t))
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleListTicks(w http.ResponseWriter, r *http.Request) {
	if s.ticks == nil {
		http.NotFound(w, r)
		return
	}
	ticks, err := s.ticks.ListByAgent(r.Context(), chi.URLParam(r, "agentID"))
	if err != nil {
		writeError(w, err)
		return
	}
	body := make([]tickBody, 0, len(ticks))
	for _, tk := range ticks {
		body = append(body, tickBody{
			Timestamp:   tk.TimestampMs,
			Price:       tk.Price,
			Side:        tk.Side,
			Amount:      tk.Amount,
			TokensDelta: tk.TokensDelta,
		})
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleGraduationCheck(w http.ResponseWriter, r *http.Request) {
	var req agentIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, storage.ErrInvalidInput)
		return
	}

	res, err := s.graduations.Check(r.Context(), req.AgentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &checkResponse{
		Eligible:      res.Eligible,
		ReserveRaised: res.ReserveRaised,
		Threshold:     res.Threshold,
		Remaining:     res.Remaining,
	})
}

func (s *Server) handleGraduate(w http.ResponseWriter, r *http.Request) {
	var req agentIDRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, storage.ErrInvalidInput)
		return
	}

	res, err := s.graduations.Graduate(r.Context(), req.AgentID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &graduateResponse{
		Success:     true,
		Status:      res.Event.Status,
		Phase:       string(res.Phase),
		HolderCount: res.HolderCount,
		Event:       eventToBody(res.Event),
	})
}

func (s *Server) handleGraduationStatus(w http.ResponseWriter, r *http.Request) {
	agentID := r.URL.Query().Get("agentId")
	if agentID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:   "INVALID_INPUT",
			Message: "agentId query parameter is required",
		})
		return
	}

	res, err := s.graduations.Status(r.Context(), agentID)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := &statusResponse{
		IsGraduated: res.IsGraduated,
		Phase:       string(res.Phase),
	}
	if res.Event != nil {
		resp.Status = res.Event.Status
		resp.Event = eventToBody(res.Event)
	}
	writeJSON(w, http.StatusOK, resp)
}
