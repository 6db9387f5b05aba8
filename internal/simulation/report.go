package simulation

import "community-energy/internal/ledger"

// TickReport summarizes one tick. Energy figures are in kWh.
type TickReport struct {
	Tick  int
	Block ledger.Block

	Consumed      float64
	Produced      float64
	Withdrawn     float64 // part of Consumed covered by the pool
	StoredInPool  float64
	StoredLocally float64
	PoolLevel     float64

	Trades       int
	FailedTrades int

	EnergyBefore float64 // node balances + pool, start of tick
	EnergyAfter  float64
}

// Imbalance is the energy not explained by production and consumption.
// It is zero up to floating point error.
func (r *TickReport) Imbalance() float64 {
	return r.EnergyAfter - (r.EnergyBefore + r.Produced - r.Consumed)
}
