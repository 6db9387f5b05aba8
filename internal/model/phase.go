package model

// Phase names the settlement phase that produced a transfer.
// Keep these values stable; they are intended for CSV output.
type Phase string

const (
	PhaseGridSell Phase = "GRID_SELL"
	PhasePeer     Phase = "PEER"
	PhaseGridBuy  Phase = "GRID_BUY"
)

// Valid reports whether p is one of the known phases.
func (p Phase) Valid() bool {
	switch p {
	case PhaseGridSell, PhasePeer, PhaseGridBuy:
		return true
	default:
		return false
	}
}
