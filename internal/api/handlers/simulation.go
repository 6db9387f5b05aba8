package handlers

import (
	"errors"
	"io"
	"net/http"
	"sync"

	"community-energy/internal/api/models"
	"community-energy/internal/metrics"
	"community-energy/internal/simulation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SimulationHandler drives the community simulation owned by the server
type SimulationHandler struct {
	sim     *simulation.Simulation
	writeMu *sync.Mutex
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewSimulationHandler creates a new simulation handler
func NewSimulationHandler(sim *simulation.Simulation, writeMu *sync.Mutex, m *metrics.Metrics, logger *zap.Logger) *SimulationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SimulationHandler{sim: sim, writeMu: writeMu, metrics: m, logger: logger}
}

// GetState handles GET /api/v1/simulation
func (h *SimulationHandler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.state())
}

// Step handles POST /api/v1/simulation/step
func (h *SimulationHandler) Step(c *gin.Context) {
	var req models.StepRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", err)
		return
	}
	if req.Steps == 0 {
		req.Steps = 1
	}

	h.writeMu.Lock()
	reports, err := h.sim.Run(req.Steps)
	h.writeMu.Unlock()
	if err != nil {
		h.logger.Error("Simulation step failed", zap.Error(err))
		writeError(c, http.StatusInternalServerError, "SIMULATION_FAILED", err)
		return
	}

	resp := models.StepResponse{
		Reports: make([]models.TickReport, 0, len(reports)),
		State:   h.state(),
	}
	for _, r := range reports {
		h.metrics.ObserveTick(r)
		resp.Reports = append(resp.Reports, models.TickReport{
			Tick:          r.Tick,
			Block:         blockInfo(r.Block),
			Consumed:      r.Consumed,
			Produced:      r.Produced,
			Withdrawn:     r.Withdrawn,
			StoredInPool:  r.StoredInPool,
			StoredLocally: r.StoredLocally,
			PoolLevel:     r.PoolLevel,
			Trades:        r.Trades,
			FailedTrades:  r.FailedTrades,
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SimulationHandler) state() models.SimulationState {
	nodes := h.sim.Nodes()
	st := models.SimulationState{
		Tick:  h.sim.Tick(),
		Nodes: make([]models.NodeInfo, 0, len(nodes)),
		Pool: models.PoolInfo{
			Stored:   h.sim.Pool().Stored(),
			Capacity: h.sim.Pool().Capacity(),
			Headroom: h.sim.Pool().Headroom(),
		},
		LedgerLength: h.sim.Ledger().Len(),
	}
	for _, n := range nodes {
		st.Nodes = append(st.Nodes, models.NodeInfo{
			ID:              n.ID,
			Balance:         n.Balance,
			ProductionRate:  n.ProductionRate,
			ConsumptionRate: n.ConsumptionRate,
		})
	}
	return st
}
