package analysis

import (
	"math"

	"community-energy/internal/market"
	"community-energy/internal/model"

	"github.com/shopspring/decimal"
)

// Tolerance used when comparing energy totals.
const Tolerance = 1e-6

// ParticipantSummary is one participant's outcome of a settlement round.
// Money figures are rounded to cents.
type ParticipantSummary struct {
	Name string

	InitialSurplus float64
	InitialDemand  float64
	FinalSurplus   float64
	FinalDemand    float64

	Bought float64 // kWh received from the grid or peers
	Sold   float64 // kWh sent to peers or the grid

	Profit    decimal.Decimal
	TotalCost decimal.Decimal
	Net       decimal.Decimal // Profit - TotalCost
}

// Conservation compares energy totals before and after a round.
//
// Every transfer lowers one side's surplus (or the grid's) and either lowers
// a demand or raises the grid's surplus, so supply minus demand is invariant,
// and initial supply equals final supply plus what was delivered to demand.
type Conservation struct {
	InitialNet float64 // Σsurplus + grid surplus − Σdemand
	FinalNet   float64
	Supply     float64 // initial Σsurplus + grid surplus
	Remaining  float64 // final Σsurplus + grid surplus
	Delivered  float64 // energy that met demand
	Holds      bool
}

// RoundSummary is the report of one settlement round.
type RoundSummary struct {
	Participants []ParticipantSummary
	Conservation Conservation

	GridInitialSurplus float64
	GridFinalSurplus   float64
	Transfers          int
	TransferValue      decimal.Decimal
}

// Summarize reports on a round given the input snapshot and the settled state.
func Summarize(initial model.MarketSnapshot, final []*model.Participant, grid *model.Grid, res *market.Result) RoundSummary {
	s := RoundSummary{
		GridInitialSurplus: initial.Grid.Surplus,
		GridFinalSurplus:   grid.Surplus,
		Participants:       make([]ParticipantSummary, 0, len(final)),
	}

	moved := map[string][2]float64{} // name -> {bought, sold}
	if res != nil {
		s.Transfers = len(res.Transfers)
		value := decimal.Zero
		for _, t := range res.Transfers {
			value = value.Add(decimal.NewFromFloat(t.Cost))
			in := moved[t.To]
			in[0] += t.Amount
			moved[t.To] = in
			out := moved[t.From]
			out[1] += t.Amount
			moved[t.From] = out
		}
		s.TransferValue = Cents(value)
	}

	byName := make(map[string]model.ParticipantState, len(initial.Participants))
	for _, p := range initial.Participants {
		byName[p.Name] = p
	}
	for _, p := range final {
		init := byName[p.Name]
		profit := decimal.NewFromFloat(p.Profit)
		cost := decimal.NewFromFloat(p.TotalCost)
		s.Participants = append(s.Participants, ParticipantSummary{
			Name:           p.Name,
			InitialSurplus: init.Surplus,
			InitialDemand:  init.Demand,
			FinalSurplus:   p.Surplus,
			FinalDemand:    p.Demand,
			Bought:         moved[p.Name][0],
			Sold:           moved[p.Name][1],
			Profit:         Cents(profit),
			TotalCost:      Cents(cost),
			Net:            Cents(profit.Sub(cost)),
		})
	}

	s.Conservation = CheckConservation(initial, final, grid)
	return s
}

// CheckConservation evaluates the energy balance of a round.
func CheckConservation(initial model.MarketSnapshot, final []*model.Participant, grid *model.Grid) Conservation {
	c := Conservation{
		InitialNet: initial.Grid.Surplus,
		Supply:     initial.Grid.Surplus,
		FinalNet:   grid.Surplus,
		Remaining:  grid.Surplus,
	}
	initialDemand := 0.0
	for _, p := range initial.Participants {
		c.InitialNet += p.Surplus - p.Demand
		c.Supply += p.Surplus
		initialDemand += p.Demand
	}
	finalDemand := 0.0
	for _, p := range final {
		c.FinalNet += p.Surplus - p.Demand
		c.Remaining += p.Surplus
		finalDemand += p.Demand
	}
	c.Delivered = initialDemand - finalDemand
	c.Holds = math.Abs(c.InitialNet-c.FinalNet) <= Tolerance &&
		math.Abs(c.Supply-(c.Remaining+c.Delivered)) <= Tolerance
	return c
}

// Cents rounds a money amount to two decimal places.
func Cents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
