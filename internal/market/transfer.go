package market

import "community-energy/internal/model"

// Transfer is one executed energy movement of a settlement round.
// Cost is the price attached to the movement: the grid selling price, the
// peer unit transfer cost or the grid buying price, times Amount.
type Transfer struct {
	Phase    model.Phase
	From     string
	To       string
	Amount   float64
	UnitCost float64 // peer phase only
	Cost     float64
}

type Result struct {
	// Transfers holds every recorded transfer in execution order.
	Transfers   []Transfer
	GridSurplus float64

	GridSold   float64
	PeerTraded float64
	GridBought float64
}

func (r *Result) add(t Transfer) {
	r.Transfers = append(r.Transfers, t)
	switch t.Phase {
	case model.PhaseGridSell:
		r.GridSold += t.Amount
	case model.PhasePeer:
		r.PeerTraded += t.Amount
	case model.PhaseGridBuy:
		r.GridBought += t.Amount
	}
}

// ByPhase returns the transfers recorded in phase, in execution order.
func (r *Result) ByPhase(phase model.Phase) []Transfer {
	var out []Transfer
	for _, t := range r.Transfers {
		if t.Phase == phase {
			out = append(out, t)
		}
	}
	return out
}
