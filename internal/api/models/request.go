package models

// SettlementRequest is the body of POST /api/v1/settlements.
// Participant order is significant: the grid serves demand in this order.
type SettlementRequest struct {
	Grid         GridInput          `json:"grid"`
	Participants []ParticipantInput `json:"participants" binding:"omitempty,dive"`
	Options      SettlementOptions  `json:"options,omitempty"`
}

// GridInput defines the grid's energy and prices for one round
type GridInput struct {
	Name         string  `json:"name,omitempty"`
	Surplus      float64 `json:"surplus" binding:"gte=0"`
	SellingPrice float64 `json:"selling_price" binding:"gte=0"`
	BuyingPrice  float64 `json:"buying_price" binding:"gte=0"`
	TokenPrice   float64 `json:"token_price" binding:"gte=0"`
}

// ParticipantInput defines one community member
type ParticipantInput struct {
	Name         string             `json:"name" binding:"required"`
	Surplus      float64            `json:"surplus" binding:"gte=0"`
	Demand       float64            `json:"demand" binding:"gte=0"`
	TransferCost map[string]float64 `json:"transfer_cost"`
}

// SettlementOptions contains optional settlement parameters
type SettlementOptions struct {
	Commit           bool `json:"commit,omitempty"`            // record transfers as a ledger block
	IncludeTransfers bool `json:"include_transfers,omitempty"` // default: false
}

// BlockListRequest is the query of GET /api/v1/ledger/blocks
type BlockListRequest struct {
	Offset int `form:"offset,omitempty" binding:"gte=0"`
	Limit  int `form:"limit,omitempty" binding:"gte=0,lte=500"` // default: 50
}

// StepRequest is the optional body of POST /api/v1/simulation/step
type StepRequest struct {
	Steps int `json:"steps,omitempty" binding:"gte=0,lte=1000"` // default: 1
}
