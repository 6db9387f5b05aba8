package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"community-energy/internal/api"
	"community-energy/internal/api/handlers"
	"community-energy/internal/config"
	"community-energy/internal/data"
	"community-energy/internal/ledger"
	"community-energy/internal/logging"
	"community-energy/internal/market"
	"community-energy/internal/metrics"
	"community-energy/internal/simulation"
	"community-energy/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfgPath := flag.String("config", os.Getenv("CONFIG_PATH"), "Path to YAML config (optional)")
	flag.Parse()

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("API server stopped", zap.Error(err))
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.FromEnv(), nil
	}
	return config.Load(path)
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	blocks, err := store.Open(cfg.Store, logger)
	if err != nil {
		return err
	}
	var l *ledger.Ledger
	if blocks != nil {
		defer blocks.Close()
		if l, err = store.LoadLedger(blocks, logger); err != nil {
			return err
		}
		l.OnCommit(store.Hook(blocks, logger))
	} else {
		l = ledger.New(logger, nil)
	}

	seed := cfg.Simulation.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	sim, err := simulation.New(cfg.Simulation.ToParams(), rand.New(rand.NewSource(seed)), l, logger)
	if err != nil {
		return err
	}
	logger.Info("Simulation ready", zap.Int64("seed", seed), zap.Int("nodes", cfg.Simulation.Nodes))

	stream := handlers.NewBlockStream(logger)
	defer stream.Close()
	l.OnCommit(stream.Publish)

	m := metrics.New()
	l.OnCommit(m.CommitHook())

	cache := data.NewSettlementCache(data.DefaultSettlementTTL)
	go cache.RunJanitor(ctx, 5*time.Minute)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.Deps{
		Ledger:      l,
		Simulation:  sim,
		Engine:      market.New(logger),
		Cache:       cache,
		Stream:      stream,
		Metrics:     m,
		Logger:      logger,
		CORSOrigins: cfg.Server.CORSOrigins,
		StaticDir:   cfg.Server.StaticDir,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("Starting API server", zap.String("addr", srv.Addr), zap.Int("ledger_blocks", l.Len()))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
