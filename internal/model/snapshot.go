package model

import "fmt"

// MarketSnapshot is the JSON/YAML shape of a static supply/demand snapshot.
//
// Example:
//
//	{
//	  "grid": {"surplus": 10, "selling_price": 0.10, "buying_price": 0.15, "token_price": 0.12},
//	  "participants": [ {"name": "A", "surplus": 20, "transfer_cost": {"B": 0.01}}, ... ]
//	}
type MarketSnapshot struct {
	Grid         GridState          `json:"grid" yaml:"grid"`
	Participants []ParticipantState `json:"participants" yaml:"participants"`
}

type GridState struct {
	Name         string  `json:"name,omitempty" yaml:"name"`
	Surplus      float64 `json:"surplus" yaml:"surplus"`
	SellingPrice float64 `json:"selling_price" yaml:"selling_price"`
	BuyingPrice  float64 `json:"buying_price" yaml:"buying_price"`
	TokenPrice   float64 `json:"token_price" yaml:"token_price"`
}

type ParticipantState struct {
	Name         string             `json:"name" yaml:"name"`
	Surplus      float64            `json:"surplus" yaml:"surplus"`
	Demand       float64            `json:"demand" yaml:"demand"`
	TransferCost map[string]float64 `json:"transfer_cost" yaml:"transfer_cost"`
}

// Build turns the snapshot into the mutable objects a settlement round works on.
// Participant order is preserved; it is significant for settlement.
func (s MarketSnapshot) Build() ([]*Participant, *Grid, error) {
	grid, err := NewGrid(s.Grid.Surplus, GridPricing{
		SellingPrice: s.Grid.SellingPrice,
		BuyingPrice:  s.Grid.BuyingPrice,
		TokenPrice:   s.Grid.TokenPrice,
	})
	if err != nil {
		return nil, nil, err
	}
	if s.Grid.Name != "" {
		grid.Name = s.Grid.Name
	}

	out := make([]*Participant, 0, len(s.Participants))
	for i, ps := range s.Participants {
		costs := make(map[string]float64, len(ps.TransferCost))
		for k, v := range ps.TransferCost {
			costs[k] = v
		}
		p, err := NewParticipant(ps.Name, ps.Surplus, ps.Demand, costs)
		if err != nil {
			return nil, nil, fmt.Errorf("participants[%d]: %w", i, err)
		}
		out = append(out, p)
	}
	return out, grid, nil
}

// SnapshotOf captures the current state of participants and grid.
func SnapshotOf(participants []*Participant, grid *Grid) MarketSnapshot {
	s := MarketSnapshot{
		Grid: GridState{
			Name:         grid.Name,
			Surplus:      grid.Surplus,
			SellingPrice: grid.SellingPrice,
			BuyingPrice:  grid.BuyingPrice,
			TokenPrice:   grid.TokenPrice,
		},
		Participants: make([]ParticipantState, 0, len(participants)),
	}
	for _, p := range participants {
		c := p.Clone()
		s.Participants = append(s.Participants, ParticipantState{
			Name:         c.Name,
			Surplus:      c.Surplus,
			Demand:       c.Demand,
			TransferCost: c.TransferCost,
		})
	}
	return s
}
