package market

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"community-energy/internal/model"

	"go.uber.org/zap"
)

var (
	// ErrMissingTransferCost is a configuration error: a participant has no
	// cost entry for a peer it is paired with during settlement.
	ErrMissingTransferCost = errors.New("missing transfer cost")
	// ErrInvalidParticipant covers nil, duplicate or out-of-range inputs,
	// including rounds whose figures overflow float64.
	ErrInvalidParticipant = errors.New("invalid participant")
)

// Engine runs settlement rounds. It holds no market state between rounds.
type Engine struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

type pair struct {
	cost     float64
	from, to *model.Participant
}

// Settle executes one settlement round over participants and grid, mutating
// their positions and accumulators in place.
//
// Phases run in strict order:
//  1. grid sells to every participant with demand, in input order
//  2. peers trade over all ordered pairs, cheapest unit cost first; ties keep
//     the enumeration order (participant, other) in input order
//  3. every participant with leftover surplus sells all of it to the grid
//
// Inputs are validated before anything is mutated, so an error leaves every
// participant and the grid untouched.
func (e *Engine) Settle(participants []*model.Participant, grid *model.Grid) (*Result, error) {
	if err := validate(participants, grid); err != nil {
		return nil, err
	}

	// The round runs on copies and is applied only if every figure stays finite.
	work := make([]*model.Participant, len(participants))
	for i, p := range participants {
		work[i] = p.Clone()
	}
	g := grid.Clone()

	pairs, err := enumeratePairs(work)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].cost < pairs[j].cost
	})

	res := &Result{}

	for _, p := range work {
		if p.Demand <= 0 {
			continue
		}
		amount := sellFromGrid(g, p)
		if amount > 0 {
			res.add(Transfer{
				Phase:  model.PhaseGridSell,
				From:   g.Name,
				To:     p.Name,
				Amount: amount,
				Cost:   g.SellingPrice * amount,
			})
		}
	}

	for _, pr := range pairs {
		amount := transferPeer(pr.from, pr.to, pr.cost, g.TokenPrice)
		if amount > 0 {
			res.add(Transfer{
				Phase:    model.PhasePeer,
				From:     pr.from.Name,
				To:       pr.to.Name,
				Amount:   amount,
				UnitCost: pr.cost,
				Cost:     pr.cost * amount,
			})
		}
	}

	for _, p := range work {
		if p.Surplus <= 0 {
			continue
		}
		amount := buyIntoGrid(g, p)
		if amount > 0 {
			res.add(Transfer{
				Phase:  model.PhaseGridBuy,
				From:   p.Name,
				To:     g.Name,
				Amount: amount,
				Cost:   g.BuyingPrice * amount,
			})
		}
	}
	res.GridSurplus = g.Surplus

	if err := checkFinite(work, g, res); err != nil {
		return nil, err
	}
	for i, p := range participants {
		p.Surplus = work[i].Surplus
		p.Demand = work[i].Demand
		p.Profit = work[i].Profit
		p.TotalCost = work[i].TotalCost
	}
	grid.Surplus = g.Surplus

	e.logger.Sugar().Infow("Settlement completed",
		"participants", len(participants),
		"pairs", len(pairs),
		"transfers", len(res.Transfers),
		"grid_surplus", grid.Surplus,
	)
	return res, nil
}

// checkFinite rejects a round whose amounts, costs or positions overflowed.
func checkFinite(participants []*model.Participant, grid *model.Grid, res *Result) error {
	for _, t := range res.Transfers {
		if !finite(t.Amount) || !finite(t.Cost) {
			return fmt.Errorf("%w: %s transfer %s -> %s overflows (amount %g, cost %g)",
				ErrInvalidParticipant, t.Phase, t.From, t.To, t.Amount, t.Cost)
		}
	}
	if !finite(res.GridSold) || !finite(res.PeerTraded) || !finite(res.GridBought) || !finite(grid.Surplus) {
		return fmt.Errorf("%w: grid totals overflow", ErrInvalidParticipant)
	}
	for _, p := range participants {
		if !finite(p.Surplus) || !finite(p.Demand) || !finite(p.Profit) || !finite(p.TotalCost) {
			return fmt.Errorf("%w: participant %s position overflows", ErrInvalidParticipant, p.Name)
		}
	}
	return nil
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

func validate(participants []*model.Participant, grid *model.Grid) error {
	if grid == nil {
		return fmt.Errorf("%w: grid is nil", ErrInvalidParticipant)
	}
	if err := grid.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParticipant, err)
	}
	seen := make(map[string]bool, len(participants))
	for i, p := range participants {
		if p == nil {
			return fmt.Errorf("%w: participant %d is nil", ErrInvalidParticipant, i)
		}
		if err := p.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidParticipant, err)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: duplicate name %q", ErrInvalidParticipant, p.Name)
		}
		if p.Name == grid.Name {
			return fmt.Errorf("%w: %q collides with the grid name", ErrInvalidParticipant, p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

// enumeratePairs lists (participant, other) for each participant in input
// order and each other participant in input order, excluding self-pairs.
func enumeratePairs(participants []*model.Participant) ([]pair, error) {
	n := len(participants)
	if n < 2 {
		return nil, nil
	}
	out := make([]pair, 0, n*(n-1))
	for _, from := range participants {
		for _, to := range participants {
			if from == to {
				continue
			}
			c, err := from.CostTo(to.Name)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMissingTransferCost, err)
			}
			out = append(out, pair{cost: c, from: from, to: to})
		}
	}
	return out, nil
}

func sellFromGrid(g *model.Grid, p *model.Participant) float64 {
	amount := min(p.Demand, g.Surplus)
	if amount <= 0 {
		return 0
	}
	g.Surplus -= amount
	p.Demand -= amount
	p.TotalCost += g.SellingPrice * amount
	return amount
}

func transferPeer(from, to *model.Participant, unitCost, tokenPrice float64) float64 {
	amount := min(from.Surplus, to.Demand)
	if amount <= 0 {
		return 0
	}
	from.Surplus -= amount
	to.Demand -= amount
	from.Profit += (tokenPrice - unitCost) * amount
	to.TotalCost += tokenPrice * amount
	return amount
}

func buyIntoGrid(g *model.Grid, p *model.Participant) float64 {
	amount := p.Surplus
	if amount <= 0 {
		return 0
	}
	g.Surplus += amount
	p.Surplus = 0
	p.Profit += (g.BuyingPrice - g.TokenPrice) * amount
	return amount
}
