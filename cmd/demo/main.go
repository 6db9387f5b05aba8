package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"

	"community-energy/internal/config"
	"community-energy/internal/ledger"
	"community-energy/internal/logging"
	"community-energy/internal/market"
	"community-energy/internal/model"
	"community-energy/internal/simulation"
)

// Demo:
// - Settle the four-house reference market and print each participant's outcome
// - Run a short seeded simulation against a fresh ledger and print its blocks
// - Verify the chain
func main() {
	cfgPath := flag.String("config", "", "Path to YAML config (optional)")
	steps := flag.Int("steps", 3, "Number of simulation ticks")
	seed := flag.Int64("seed", 42, "Random seed")
	outCSV := flag.String("out", "", "Optional path to write transfers CSV (e.g. results/transfers.csv)")
	flag.Parse()

	// Defaults (can be overridden via --config).
	snap := model.MarketSnapshot{
		Grid: model.GridState{Surplus: 10, SellingPrice: 0.10, BuyingPrice: 0.15, TokenPrice: 0.12},
		Participants: []model.ParticipantState{
			{Name: "A", Surplus: 20, TransferCost: map[string]float64{"B": 0.01, "C": 0.02, "D": 0.03}},
			{Name: "B", Demand: 10, TransferCost: map[string]float64{"A": 0.01, "C": 0.02, "D": 0.03}},
			{Name: "C", Surplus: 15, TransferCost: map[string]float64{"A": 0.02, "B": 0.01, "D": 0.02}},
			{Name: "D", Demand: 20, TransferCost: map[string]float64{"A": 0.03, "B": 0.02, "C": 0.02}},
		},
	}
	params := simulation.DefaultParams()
	logCfg := config.LogConfig{Level: "warn", Development: true}

	if *cfgPath != "" {
		cfg, err := config.Load(*cfgPath)
		if err != nil {
			panic(err)
		}
		if len(cfg.Market.Participants) > 0 {
			snap = cfg.Market.ToSnapshot()
		}
		params = cfg.Simulation.ToParams()
		logCfg = cfg.Log
	}

	logger, err := logging.New(logCfg)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	participants, grid, err := snap.Build()
	if err != nil {
		panic(err)
	}
	res, err := market.New(logger).Settle(participants, grid)
	if err != nil {
		panic(err)
	}

	fmt.Printf("Settled %d participants, %d transfers\n\n", len(participants), len(res.Transfers))
	for _, t := range res.Transfers {
		fmt.Printf("%-9s %-14s -> %-14s %7.2f kWh  cost=%6.2f\n", t.Phase, t.From, t.To, t.Amount, t.Cost)
	}
	fmt.Println()
	for _, p := range participants {
		fmt.Printf("%-4s surplus=%6.2f demand=%6.2f profit=%6.2f total_cost=%6.2f\n",
			p.Name, p.Surplus, p.Demand, p.Profit, p.TotalCost)
	}
	fmt.Printf("Grid surplus=%.2f\n", grid.Surplus)

	if *outCSV != "" {
		if err := market.WriteTransfersCSV(*outCSV, res.Transfers); err != nil {
			panic(err)
		}
		fmt.Printf("\nWrote CSV: %s\n", *outCSV)
	}

	l := ledger.New(logger, nil)
	sim, err := simulation.New(params, rand.New(rand.NewSource(*seed)), l, logger)
	if err != nil {
		panic(err)
	}
	fmt.Printf("\nSimulating %d ticks (seed=%d)\n", *steps, *seed)
	if _, err := sim.Run(*steps); err != nil {
		panic(err)
	}

	for _, b := range l.Blocks() {
		fmt.Println()
		fmt.Print(b.String())
		for _, tx := range b.Transactions {
			fmt.Printf("  - %s\n", tx)
		}
	}

	if err := l.Verify(); err != nil {
		fmt.Printf("\nBlockchain valid: false (%v)\n", err)
		os.Exit(1)
	}
	fmt.Println("\nBlockchain valid: true")
}
