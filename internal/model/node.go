package model

import "fmt"

// Node is a participant of the stepped simulation.
// Balance is denominated in energy tokens (1 token = 1 kWh).
// ProductionRate and ConsumptionRate are drawn once when the node is created
// and model the variability between households.
type Node struct {
	ID              string
	Balance         float64
	ProductionRate  float64
	ConsumptionRate float64
}

// Transfer moves amount from n to other iff n can cover it.
// It returns false and changes nothing when the balance is insufficient.
func (n *Node) Transfer(other *Node, amount float64) bool {
	if amount < 0 || n.Balance < amount {
		return false
	}
	n.Balance -= amount
	other.Balance += amount
	return true
}

func (n *Node) String() string {
	return fmt.Sprintf("%s balance=%.2f prod=%.2f cons=%.2f", n.ID, n.Balance, n.ProductionRate, n.ConsumptionRate)
}
