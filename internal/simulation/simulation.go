package simulation

import (
	"errors"
	"fmt"
	"sync"

	"community-energy/internal/ledger"
	"community-energy/internal/model"

	"go.uber.org/zap"
)

// Source is the random source driving a simulation. *rand.Rand satisfies it.
type Source interface {
	Float64() float64
	Intn(n int) int
}

// Params configures a simulation. Ranges are half-open [min, max).
type Params struct {
	Nodes          int
	NodePrefix     string
	InitialBalance float64
	PoolCapacity   float64

	RateMin, RateMax     float64 // per-node production/consumption rate
	JitterMin, JitterMax float64 // per-tick multiplier applied to the rates
	TradeMin, TradeMax   float64 // per-tick trade amount
	DrawFromPool         bool    // cover consumption shortfalls from the pool
}

// DefaultParams mirrors the reference community: five houses, a 100 kWh battery.
func DefaultParams() Params {
	return Params{
		Nodes:        5,
		NodePrefix:   "House_",
		PoolCapacity: 100,
		RateMin:      0.5,
		RateMax:      1.5,
		JitterMin:    0.8,
		JitterMax:    1.2,
		TradeMin:     1,
		TradeMax:     5,
	}
}

func (p Params) Validate() error {
	if p.Nodes < 1 {
		return errors.New("nodes must be >= 1")
	}
	if p.InitialBalance < 0 {
		return errors.New("initial_balance must be >= 0")
	}
	if p.PoolCapacity < 0 {
		return errors.New("pool_capacity must be >= 0")
	}
	for _, r := range []struct {
		name     string
		min, max float64
	}{
		{"rate", p.RateMin, p.RateMax},
		{"jitter", p.JitterMin, p.JitterMax},
		{"trade", p.TradeMin, p.TradeMax},
	} {
		if r.min <= 0 || r.max < r.min {
			return fmt.Errorf("%s range must satisfy 0 < min <= max", r.name)
		}
	}
	return nil
}

// Simulation is the explicit context of one stepped simulation: nodes,
// the community pool, the ledger and the random source. Steps are serialized.
type Simulation struct {
	mu     sync.Mutex
	params Params
	nodes  []*model.Node
	pool   *model.Pool
	ledger *ledger.Ledger
	rng    Source
	logger *zap.Logger
	tick   int
}

// New creates the nodes (drawing their rates from rng) and an empty pool.
func New(params Params, rng Source, l *ledger.Ledger, logger *zap.Logger) (*Simulation, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, errors.New("random source is nil")
	}
	if l == nil {
		return nil, errors.New("ledger is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, err := model.NewPool(params.PoolCapacity)
	if err != nil {
		return nil, err
	}

	s := &Simulation{
		params: params,
		pool:   pool,
		ledger: l,
		rng:    rng,
		logger: logger,
	}
	s.nodes = make([]*model.Node, params.Nodes)
	for i := range s.nodes {
		s.nodes[i] = &model.Node{
			ID:              fmt.Sprintf("%s%d", params.NodePrefix, i+1),
			Balance:         params.InitialBalance,
			ProductionRate:  s.uniform(params.RateMin, params.RateMax),
			ConsumptionRate: s.uniform(params.RateMin, params.RateMax),
		}
	}
	return s, nil
}

// Run advances the simulation steps ticks.
func (s *Simulation) Run(steps int) ([]*TickReport, error) {
	out := make([]*TickReport, 0, steps)
	for i := 0; i < steps; i++ {
		r, err := s.Step()
		if err != nil {
			return out, fmt.Errorf("tick %d: %w", s.Tick()+1, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// Step advances one tick and commits its records as one block.
//
// Energy phase, node by node in order: consume, produce, settle the remainder
// into the pool or the node's own balance. Trading phase, node by node in
// order: one trade attempt with a uniformly chosen other node. Commit last.
func (s *Simulation) Step() (*TickReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tick++
	report := &TickReport{Tick: s.tick, EnergyBefore: s.totalEnergy()}
	log := s.logger.Sugar().With("tick", s.tick)

	for _, n := range s.nodes {
		consumed := s.consume(n, report)
		produced := s.uniform(s.params.JitterMin, s.params.JitterMax) * n.ProductionRate
		report.Consumed += consumed
		report.Produced += produced
		log.Debugw("Node energy", "node", n.ID, "consumed", consumed, "produced", produced)

		s.settleRemainder(n, produced, report)
		s.ledger.AppendPending(ledger.BalanceUpdate(n.ID, n.Balance))
	}

	if len(s.nodes) > 1 {
		for i, n := range s.nodes {
			// Uniform over the other nodes.
			j := s.rng.Intn(len(s.nodes) - 1)
			if j >= i {
				j++
			}
			partner := s.nodes[j]
			amount := s.uniform(s.params.TradeMin, s.params.TradeMax)
			if n.Transfer(partner, amount) {
				report.Trades++
				s.ledger.AppendPending(ledger.Traded(n.ID, partner.ID, amount, n.Balance, partner.Balance))
				continue
			}
			report.FailedTrades++
			log.Warnw("Trade failed: insufficient balance",
				"from", n.ID, "to", partner.ID, "amount", amount, "balance", n.Balance)
			s.ledger.AppendPending(ledger.TradeFailed(n.ID, partner.ID, amount, n.Balance))
		}
	}

	summary := ledger.PoolLevel(s.pool.Stored())
	report.Block = s.ledger.Commit(&summary)
	report.PoolLevel = s.pool.Stored()
	report.EnergyAfter = s.totalEnergy()

	log.Infow("Tick committed",
		"block", report.Block.Index,
		"consumed", report.Consumed,
		"produced", report.Produced,
		"pool", report.PoolLevel,
		"trades", report.Trades,
		"failed_trades", report.FailedTrades,
	)
	return report, nil
}

// consume removes a jittered amount from the node balance, never below zero.
// With DrawFromPool the unmet part is withdrawn from the pool, all or nothing.
func (s *Simulation) consume(n *model.Node, report *TickReport) float64 {
	want := n.ConsumptionRate * s.uniform(s.params.JitterMin, s.params.JitterMax)
	consumed := min(n.Balance, want)
	n.Balance -= consumed

	shortfall := want - consumed
	if !s.params.DrawFromPool || shortfall <= 0 {
		return consumed
	}
	if got := s.pool.Withdraw(shortfall); got > 0 {
		report.Withdrawn += got
		s.ledger.AppendPending(ledger.Withdrew(n.ID, got))
		return consumed + got
	}
	s.logger.Sugar().Debugw("Pool withdrawal rejected", "node", n.ID, "amount", shortfall, "stored", s.pool.Stored())
	s.ledger.AppendPending(ledger.WithdrawRejected(n.ID, shortfall))
	return consumed
}

// settleRemainder stores balance+produced in the pool, or keeps it in the
// node's balance when the pool rejects it.
func (s *Simulation) settleRemainder(n *model.Node, produced float64, report *TickReport) {
	remaining := n.Balance + produced
	if remaining <= 0 {
		return
	}
	if s.pool.Store(remaining) {
		n.Balance = 0
		report.StoredInPool += remaining
		s.ledger.AppendPending(ledger.StoredInPool(n.ID, remaining))
		return
	}
	n.Balance = remaining
	report.StoredLocally += remaining
	s.logger.Sugar().Debugw("Pool full, energy kept locally",
		"node", n.ID, "amount", remaining, "stored", s.pool.Stored(), "capacity", s.pool.Capacity())
	s.ledger.AppendPending(ledger.StoredLocally(n.ID, remaining, n.Balance))
}

func (s *Simulation) uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*s.rng.Float64()
}

// totalEnergy is the sum of node balances plus the pool level.
func (s *Simulation) totalEnergy() float64 {
	sum := s.pool.Stored()
	for _, n := range s.nodes {
		sum += n.Balance
	}
	return sum
}

// Tick returns the number of completed ticks.
func (s *Simulation) Tick() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

// Nodes returns copies of the current node states.
func (s *Simulation) Nodes() []model.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Node, len(s.nodes))
	for i, n := range s.nodes {
		out[i] = *n
	}
	return out
}

func (s *Simulation) Pool() *model.Pool { return s.pool }

func (s *Simulation) Ledger() *ledger.Ledger { return s.ledger }
