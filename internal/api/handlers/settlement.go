package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"sync"

	"community-energy/internal/analysis"
	"community-energy/internal/api/models"
	"community-energy/internal/data"
	"community-energy/internal/ledger"
	"community-energy/internal/market"
	"community-energy/internal/metrics"
	"community-energy/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SettlementHandler handles settlement-related requests
type SettlementHandler struct {
	engine *market.Engine
	ledger *ledger.Ledger
	// writeMu serializes every writer of the ledger's pending buffer.
	writeMu *sync.Mutex
	cache   *data.SettlementCache
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewSettlementHandler creates a new settlement handler
func NewSettlementHandler(engine *market.Engine, l *ledger.Ledger, writeMu *sync.Mutex, cache *data.SettlementCache, m *metrics.Metrics, logger *zap.Logger) *SettlementHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettlementHandler{engine: engine, ledger: l, writeMu: writeMu, cache: cache, metrics: m, logger: logger}
}

// Settle handles POST /api/v1/settlements
func (h *SettlementHandler) Settle(c *gin.Context) {
	var req models.SettlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}

	snap := toSnapshot(req)
	digest, err := data.Fingerprint(snap)
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_MARKET", err)
		return
	}
	participants, grid, err := snap.Build()
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_MARKET", err)
		return
	}

	res, err := h.engine.Settle(participants, grid)
	if err != nil {
		code := "SETTLEMENT_FAILED"
		switch {
		case errors.Is(err, market.ErrMissingTransferCost):
			code = "MISSING_TRANSFER_COST"
		case errors.Is(err, market.ErrInvalidParticipant):
			code = "INVALID_PARTICIPANT"
		}
		writeError(c, http.StatusUnprocessableEntity, code, err)
		return
	}
	h.metrics.ObserveSettlement(res)

	s := &data.Settlement{
		ID:          data.NewSettlementID(),
		Input:       snap,
		InputDigest: digest,
		Final:       model.SnapshotOf(participants, grid),
		Result:      res,
		Summary:     analysis.Summarize(snap, participants, grid, res),
	}
	if req.Options.Commit {
		h.writeMu.Lock()
		b := market.Record(h.ledger, res)
		h.writeMu.Unlock()
		s.Block = &b
	}
	h.cache.Put(s)

	h.logger.Info("Settlement served",
		zap.String("id", s.ID),
		zap.Int("transfers", len(res.Transfers)),
		zap.Bool("committed", s.Block != nil),
	)
	c.JSON(http.StatusCreated, buildSettlementResponse(s, req.Options.IncludeTransfers))
}

// GetSettlement handles GET /api/v1/settlements/:id
// An optional ?phase=GRID_SELL|PEER|GRID_BUY narrows the transfer list.
func (h *SettlementHandler) GetSettlement(c *gin.Context) {
	phase := model.Phase(c.Query("phase"))
	if phase != "" && !phase.Valid() {
		writeError(c, http.StatusBadRequest, "INVALID_PHASE", fmt.Errorf("unknown phase %q", phase))
		return
	}

	id := c.Param("id")
	s, ok := h.cache.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "SETTLEMENT_NOT_FOUND",
				Message: "settlement not found or expired",
				Details: map[string]interface{}{"id": id},
			},
		})
		return
	}
	resp := buildSettlementResponse(s, true)
	if phase != "" {
		resp.Transfers = transferRows(s.Result.ByPhase(phase))
	}
	c.JSON(http.StatusOK, resp)
}

func toSnapshot(req models.SettlementRequest) model.MarketSnapshot {
	snap := model.MarketSnapshot{
		Grid: model.GridState{
			Name:         req.Grid.Name,
			Surplus:      req.Grid.Surplus,
			SellingPrice: req.Grid.SellingPrice,
			BuyingPrice:  req.Grid.BuyingPrice,
			TokenPrice:   req.Grid.TokenPrice,
		},
		Participants: make([]model.ParticipantState, 0, len(req.Participants)),
	}
	for _, p := range req.Participants {
		snap.Participants = append(snap.Participants, model.ParticipantState{
			Name:         p.Name,
			Surplus:      p.Surplus,
			Demand:       p.Demand,
			TransferCost: p.TransferCost,
		})
	}
	return snap
}

func buildSettlementResponse(s *data.Settlement, includeTransfers bool) models.SettlementResponse {
	sum := s.Summary
	resp := models.SettlementResponse{
		ID:          s.ID,
		Status:      "settled",
		CreatedAt:   s.CreatedAt,
		InputDigest: s.InputDigest,
		Summary: models.SettlementSummary{
			Transfers:          sum.Transfers,
			TransferValue:      sum.TransferValue,
			GridSold:           s.Result.GridSold,
			PeerTraded:         s.Result.PeerTraded,
			GridBought:         s.Result.GridBought,
			GridInitialSurplus: sum.GridInitialSurplus,
			GridFinalSurplus:   sum.GridFinalSurplus,
			EnergyConserved:    sum.Conservation.Holds,
		},
		Participants: make([]models.ParticipantResult, 0, len(sum.Participants)),
	}
	if s.Block != nil {
		resp.Status = "committed"
		info := blockInfo(*s.Block)
		resp.Block = &info
	}

	for _, r := range analysis.RankByNet(sum.Participants) {
		resp.Participants = append(resp.Participants, models.ParticipantResult{
			Rank:         r.Rank,
			Name:         r.Name,
			FinalSurplus: r.FinalSurplus,
			FinalDemand:  r.FinalDemand,
			Bought:       r.Bought,
			Sold:         r.Sold,
			Profit:       r.Profit,
			TotalCost:    r.TotalCost,
			Net:          r.Net,
		})
	}

	if includeTransfers {
		resp.Transfers = transferRows(s.Result.Transfers)
	}
	return resp
}

func transferRows(transfers []market.Transfer) []models.TransferRow {
	out := make([]models.TransferRow, 0, len(transfers))
	for _, t := range transfers {
		out = append(out, models.TransferRow{
			Phase:    string(t.Phase),
			From:     t.From,
			To:       t.To,
			Amount:   t.Amount,
			UnitCost: t.UnitCost,
			Cost:     analysis.Cents(decimal.NewFromFloat(t.Cost)),
		})
	}
	return out
}

func writeError(c *gin.Context, status int, code string, err error) {
	c.JSON(status, models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    code,
			Message: err.Error(),
		},
	})
}
