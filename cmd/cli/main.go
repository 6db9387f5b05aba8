package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"community-energy/internal/analysis"
	"community-energy/internal/config"
	"community-energy/internal/data"
	"community-energy/internal/ledger"
	"community-energy/internal/logging"
	"community-energy/internal/market"
	"community-energy/internal/model"
	"community-energy/internal/simulation"
	"community-energy/internal/store"

	"go.uber.org/zap"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "settle":
		cmdSettle(os.Args[2:])
	case "simulate":
		cmdSimulate(os.Args[2:])
	case "verify":
		cmdVerify(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println("usage:")
	fmt.Println("  cli settle --market examples/markets/reference.yaml --out results/transfers.csv [--commit --config examples/config.yaml]")
	fmt.Println("  cli simulate --config examples/config.yaml --steps 3 --out results/ledger.csv")
	fmt.Println("  cli verify --config examples/config.yaml")
	fmt.Println("")
	fmt.Println("notes:")
	fmt.Println("  - settle outputs CSV with phase=GRID_SELL/PEER/GRID_BUY per transfer")
	fmt.Println("  - --commit and simulate append blocks to the configured store.backend")
	fmt.Println("  - verify recomputes every hash of the persisted chain")
}

func cmdSettle(args []string) {
	fs := flag.NewFlagSet("settle", flag.ExitOnError)
	marketPath := fs.String("market", "", "Market snapshot (.yaml with a top-level market key, or .json)")
	cfgPath := fs.String("config", "", "Path to YAML config; its market section is used when --market is empty")
	outPath := fs.String("out", "results/transfers.csv", "Output CSV path")
	commit := fs.Bool("commit", false, "Record the transfers as a block in the configured store")
	verbose := fs.Bool("v", false, "Verbose logging")
	_ = fs.Parse(args)

	cfg := loadConfig(*cfgPath)
	logger := newLogger(cfg, *verbose)
	defer logger.Sync() //nolint:errcheck

	snap, err := loadSnapshot(*marketPath, cfg)
	if err != nil {
		fatal(err)
	}
	participants, grid, err := snap.Build()
	if err != nil {
		fatal(err)
	}
	res, err := market.New(logger).Settle(participants, grid)
	if err != nil {
		fatal(err)
	}

	if err := os.MkdirAll(filepath.Dir(*outPath), 0o755); err != nil {
		fatal(err)
	}
	if err := market.WriteTransfersCSV(*outPath, res.Transfers); err != nil {
		fatal(err)
	}
	fmt.Printf("Wrote %d transfers to %s\n", len(res.Transfers), *outPath)

	summary := analysis.Summarize(snap, participants, grid, res)
	printSummary(summary)

	if *commit {
		l, closeStore := openLedger(cfg, logger)
		defer closeStore()
		b := market.Record(l, res)
		fmt.Printf("Committed block #%d %s\n", b.Index, b.Hash)
	}
}

func cmdSimulate(args []string) {
	fs := flag.NewFlagSet("simulate", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Path to YAML config")
	steps := fs.Int("steps", 0, "Ticks to run (0 = simulation.steps from config)")
	seed := fs.Int64("seed", 0, "Random seed (0 = simulation.seed from config, else time based)")
	outPath := fs.String("out", "results/ledger.csv", "Output CSV of the ledger")
	verbose := fs.Bool("v", false, "Verbose logging")
	_ = fs.Parse(args)

	cfg := loadConfig(*cfgPath)
	logger := newLogger(cfg, *verbose)
	defer logger.Sync() //nolint:errcheck

	if *steps == 0 {
		*steps = cfg.Simulation.Steps
	}
	if *seed == 0 {
		*seed = cfg.Simulation.Seed
	}
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	l, closeStore := openLedger(cfg, logger)
	defer closeStore()

	sim, err := simulation.New(cfg.Simulation.ToParams(), rand.New(rand.NewSource(*seed)), l, logger)
	if err != nil {
		fatal(err)
	}
	reports, err := sim.Run(*steps)
	if err != nil {
		fatal(err)
	}

	fmt.Printf("%-5s %-6s %-10s %-10s %-10s %-10s %-7s %-7s\n", "tick", "block", "consumed", "produced", "pooled", "local", "trades", "failed")
	for _, r := range reports {
		fmt.Printf("%-5d %-6d %-10.2f %-10.2f %-10.2f %-10.2f %-7d %-7d\n",
			r.Tick, r.Block.Index, r.Consumed, r.Produced, r.StoredInPool, r.StoredLocally, r.Trades, r.FailedTrades)
	}
	fmt.Printf("Seed=%d Pool=%.2f/%.2f kWh Blocks=%d\n", *seed, sim.Pool().Stored(), sim.Pool().Capacity(), l.Len())

	if err := os.MkdirAll(filepath.Dir(*outPath), 0o755); err != nil {
		fatal(err)
	}
	if err := ledger.WriteCSV(*outPath, l.Blocks()); err != nil {
		fatal(err)
	}
	fmt.Printf("Wrote ledger to %s\n", *outPath)
}

func cmdVerify(args []string) {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	cfgPath := fs.String("config", "", "Path to YAML config")
	backend := fs.String("backend", "", "Override store.backend")
	path := fs.String("path", "", "Override store.path")
	_ = fs.Parse(args)

	cfg := loadConfig(*cfgPath)
	if *backend != "" {
		cfg.Store.Backend = *backend
	}
	if *path != "" {
		cfg.Store.Path = *path
	}
	logger := newLogger(cfg, false)
	defer logger.Sync() //nolint:errcheck

	s, err := store.Open(cfg.Store, logger)
	if err != nil {
		fatal(err)
	}
	if s == nil {
		fatal(fmt.Errorf("verify needs a store backend (leveldb or badger)"))
	}
	defer s.Close()

	blocks, err := s.Load()
	if err != nil {
		fatal(err)
	}
	if err := ledger.VerifyChain(blocks); err != nil {
		fmt.Printf("Chain INVALID (%d blocks): %v\n", len(blocks), err)
		os.Exit(1)
	}
	fmt.Printf("Chain valid: %d blocks, head %s\n", len(blocks), blocks[len(blocks)-1].Hash)
}

func loadConfig(path string) *config.Config {
	if path == "" {
		return config.FromEnv()
	}
	cfg, err := config.Load(path)
	if err != nil {
		fatal(err)
	}
	return cfg
}

func newLogger(cfg *config.Config, verbose bool) *zap.Logger {
	lc := cfg.Log
	if !verbose {
		lc.Level = "warn"
	}
	logger, err := logging.New(lc)
	if err != nil {
		fatal(err)
	}
	return logger
}

// openLedger resumes the persisted chain, or returns an in-memory ledger when
// no store is configured.
func openLedger(cfg *config.Config, logger *zap.Logger) (*ledger.Ledger, func()) {
	s, err := store.Open(cfg.Store, logger)
	if err != nil {
		fatal(err)
	}
	if s == nil {
		return ledger.New(logger, nil), func() {}
	}
	l, err := store.LoadLedger(s, logger)
	if err != nil {
		s.Close()
		fatal(err)
	}
	l.OnCommit(store.Hook(s, logger))
	return l, func() { s.Close() }
}

func loadSnapshot(path string, cfg *config.Config) (model.MarketSnapshot, error) {
	switch {
	case path == "":
		if len(cfg.Market.Participants) == 0 {
			return model.MarketSnapshot{}, fmt.Errorf("no market: pass --market or a config with a market section")
		}
		return cfg.Market.ToSnapshot(), nil
	case strings.HasSuffix(path, ".json"):
		return data.LoadMarketJSON(path)
	default:
		m, err := config.LoadMarketFile(path)
		if err != nil {
			return model.MarketSnapshot{}, err
		}
		return m.ToSnapshot(), nil
	}
}

func printSummary(s analysis.RoundSummary) {
	fmt.Printf("%-4s %-12s %-9s %-9s %-9s %-9s %-9s\n", "rank", "participant", "bought", "sold", "profit", "cost", "net")
	for _, r := range analysis.RankByNet(s.Participants) {
		fmt.Printf("%-4d %-12s %-9.2f %-9.2f %-9s %-9s %-9s\n",
			r.Rank, r.Name, r.Bought, r.Sold, r.Profit.StringFixed(2), r.TotalCost.StringFixed(2), r.Net.StringFixed(2))
	}
	fmt.Printf("Grid surplus %.2f -> %.2f, transfer value %s, energy conserved: %v\n",
		s.GridInitialSurplus, s.GridFinalSurplus, s.TransferValue.StringFixed(2), s.Conservation.Holds)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
