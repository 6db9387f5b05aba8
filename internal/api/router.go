// Package api wires the HTTP surface of the community energy service.
package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"community-energy/internal/api/handlers"
	"community-energy/internal/api/middleware"
	"community-energy/internal/data"
	"community-energy/internal/ledger"
	"community-energy/internal/market"
	"community-energy/internal/metrics"
	"community-energy/internal/simulation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Deps are the long-lived objects the routes operate on.
type Deps struct {
	Ledger     *ledger.Ledger
	Simulation *simulation.Simulation // optional; must write to Ledger
	Engine     *market.Engine
	Cache      *data.SettlementCache
	Stream     *handlers.BlockStream // optional
	Metrics    *metrics.Metrics      // optional; served on /metrics
	Logger     *zap.Logger

	CORSOrigins []string
	StaticDir   string // optional SPA build served for non-API paths
}

// NewRouter builds the gin engine. Settlement commits and simulation steps
// share one lock so their records never interleave in the pending buffer.
func NewRouter(d Deps) *gin.Engine {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	engine := d.Engine
	if engine == nil {
		engine = market.New(logger)
	}
	var writeMu sync.Mutex

	router := gin.New()
	router.Use(middleware.CORS(d.CORSOrigins))
	router.Use(middleware.Logger(logger))
	router.Use(middleware.ErrorHandler(logger))

	ledgerHandler := handlers.NewLedgerHandler(d.Ledger)
	settlementHandler := handlers.NewSettlementHandler(engine, d.Ledger, &writeMu, d.Cache, d.Metrics, logger)

	router.GET("/health", ledgerHandler.Health)
	if d.Metrics != nil {
		router.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	api := router.Group("/api/v1")
	{
		api.POST("/settlements", settlementHandler.Settle)
		api.GET("/settlements/:id", settlementHandler.GetSettlement)

		api.GET("/ledger/blocks", ledgerHandler.ListBlocks)
		api.GET("/ledger/blocks/:index", ledgerHandler.GetBlock)
		api.GET("/ledger/pending", ledgerHandler.ListPending)
		api.GET("/ledger/verify", ledgerHandler.Verify)

		if d.Simulation != nil {
			simulationHandler := handlers.NewSimulationHandler(d.Simulation, &writeMu, d.Metrics, logger)
			api.GET("/simulation", simulationHandler.GetState)
			api.POST("/simulation/step", simulationHandler.Step)
		}
	}
	if d.Stream != nil {
		router.GET("/ws/blocks", d.Stream.ServeWS)
	}

	serveStatic(router, d.StaticDir, logger)
	return router
}

// serveStatic serves a built SPA when staticDir exists; unknown non-API
// paths fall back to its index.html.
func serveStatic(router *gin.Engine, staticDir string, logger *zap.Logger) {
	notFound := func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "Not found"}})
	}
	if staticDir == "" {
		router.NoRoute(notFound)
		return
	}
	if _, err := os.Stat(staticDir); err != nil {
		logger.Info("Static directory not found, skipping static file serving", zap.String("dir", staticDir))
		router.NoRoute(notFound)
		return
	}

	router.Static("/assets", filepath.Join(staticDir, "assets"))
	router.StaticFile("/favicon.ico", filepath.Join(staticDir, "favicon.ico"))
	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") || strings.HasPrefix(c.Request.URL.Path, "/ws") {
			notFound(c)
			return
		}
		c.File(filepath.Join(staticDir, "index.html"))
	})
	logger.Info("Serving static files", zap.String("dir", staticDir))
}
