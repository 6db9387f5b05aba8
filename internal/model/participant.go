package model

import (
	"errors"
	"fmt"
	"math"
)

// DefaultGridName is used when a grid is configured without a name.
const DefaultGridName = "CommunityGrid"

// ErrNoTransferCost is returned when a participant has no cost entry for a peer.
var ErrNoTransferCost = errors.New("no transfer cost for peer")

// Participant is a trading entity (a house) in a settlement round.
// Units:
// - Surplus, Demand: kWh
// - TransferCost: token price units per kWh sent to the keyed peer
// - Profit, TotalCost: token price units
type Participant struct {
	Name         string
	Surplus      float64
	Demand       float64
	TransferCost map[string]float64

	Profit    float64
	TotalCost float64
}

func NewParticipant(name string, surplus, demand float64, costs map[string]float64) (*Participant, error) {
	p := &Participant{
		Name:         name,
		Surplus:      surplus,
		Demand:       demand,
		TransferCost: costs,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Participant) Validate() error {
	if p.Name == "" {
		return errors.New("participant name is required")
	}
	if !nonNegative(p.Surplus) {
		return fmt.Errorf("participant %s: surplus must be a finite value >= 0", p.Name)
	}
	if !nonNegative(p.Demand) {
		return fmt.Errorf("participant %s: demand must be a finite value >= 0", p.Name)
	}
	for peer, c := range p.TransferCost {
		if !nonNegative(c) {
			return fmt.Errorf("participant %s: transfer cost to %s must be a finite value >= 0", p.Name, peer)
		}
	}
	return nil
}

// CostTo returns the unit cost of sending energy to peer.
func (p *Participant) CostTo(peer string) (float64, error) {
	c, ok := p.TransferCost[peer]
	if !ok {
		return 0, fmt.Errorf("%s -> %s: %w", p.Name, peer, ErrNoTransferCost)
	}
	return c, nil
}

// Clone returns a deep copy, used to keep an untouched snapshot of a round's inputs.
func (p *Participant) Clone() *Participant {
	out := *p
	if p.TransferCost != nil {
		out.TransferCost = make(map[string]float64, len(p.TransferCost))
		for k, v := range p.TransferCost {
			out.TransferCost[k] = v
		}
	}
	return &out
}

func (p *Participant) String() string {
	return fmt.Sprintf("%s | %g | %g", p.Name, p.Surplus, p.Demand)
}

// GridPricing holds the prices that make the grid the buyer and seller of last resort.
type GridPricing struct {
	SellingPrice float64 // price a participant pays to buy from the grid
	BuyingPrice  float64 // price the grid pays to absorb surplus
	TokenPrice   float64 // market token price used for peer margins
}

// Grid is the community grid. It holds an energy position like a participant
// but trades only through its prices, never through a transfer-cost map.
type Grid struct {
	Name    string
	Surplus float64
	GridPricing
}

func NewGrid(surplus float64, pricing GridPricing) (*Grid, error) {
	g := &Grid{
		Name:        DefaultGridName,
		Surplus:     surplus,
		GridPricing: pricing,
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Grid) Validate() error {
	if g.Name == "" {
		return errors.New("grid name is required")
	}
	if !nonNegative(g.Surplus) {
		return errors.New("grid surplus must be a finite value >= 0")
	}
	if !nonNegative(g.SellingPrice) || !nonNegative(g.BuyingPrice) || !nonNegative(g.TokenPrice) {
		return errors.New("grid prices must be finite values >= 0")
	}
	return nil
}

func (g *Grid) Clone() *Grid {
	out := *g
	return &out
}

func (g *Grid) String() string {
	return fmt.Sprintf("%s | %g | 0", g.Name, g.Surplus)
}

// nonNegative rejects negative numbers as well as NaN and the infinities.
func nonNegative(x float64) bool {
	return x >= 0 && !math.IsInf(x, 1)
}
