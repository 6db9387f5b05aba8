package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SettlementResponse represents the outcome of one settlement round
type SettlementResponse struct {
	ID           string              `json:"id"`
	Status       string              `json:"status"`
	CreatedAt    time.Time           `json:"created_at"`
	InputDigest  string              `json:"input_digest"` // BLAKE3 of the market input
	Summary      SettlementSummary   `json:"summary"`
	Participants []ParticipantResult `json:"participants"`
	Transfers    []TransferRow       `json:"transfers,omitempty"`
	Block        *BlockInfo          `json:"block,omitempty"`
}

// SettlementSummary contains aggregated round results
type SettlementSummary struct {
	Transfers          int             `json:"transfers"`
	TransferValue      decimal.Decimal `json:"transfer_value"`
	GridSold           float64         `json:"grid_sold"`
	PeerTraded         float64         `json:"peer_traded"`
	GridBought         float64         `json:"grid_bought"`
	GridInitialSurplus float64         `json:"grid_initial_surplus"`
	GridFinalSurplus   float64         `json:"grid_final_surplus"`
	EnergyConserved    bool            `json:"energy_conserved"`
}

// ParticipantResult is one participant's outcome, ranked by net result
type ParticipantResult struct {
	Rank         int             `json:"rank"`
	Name         string          `json:"name"`
	FinalSurplus float64         `json:"final_surplus"`
	FinalDemand  float64         `json:"final_demand"`
	Bought       float64         `json:"bought"`
	Sold         float64         `json:"sold"`
	Profit       decimal.Decimal `json:"profit"`
	TotalCost    decimal.Decimal `json:"total_cost"`
	Net          decimal.Decimal `json:"net"`
}

// TransferRow represents one executed energy transfer
type TransferRow struct {
	Phase    string          `json:"phase"` // "GRID_SELL", "PEER", "GRID_BUY"
	From     string          `json:"from"`
	To       string          `json:"to"`
	Amount   float64         `json:"amount"`
	UnitCost float64         `json:"unit_cost,omitempty"`
	Cost     decimal.Decimal `json:"cost"`
}

// BlockInfo is the header view of a ledger block
type BlockInfo struct {
	Index        int       `json:"index"`
	Hash         string    `json:"hash"`
	PrevHash     string    `json:"prev_hash"`
	Timestamp    time.Time `json:"timestamp"`
	Transactions int       `json:"transactions"`
}

// BlockListResponse represents a page of block headers
type BlockListResponse struct {
	Blocks []BlockInfo `json:"blocks"`
	Total  int         `json:"total"`
	Offset int         `json:"offset"`
	Limit  int         `json:"limit"`
}

// VerifyResponse reports the result of a full chain verification
type VerifyResponse struct {
	Valid  bool            `json:"valid"`
	Length int             `json:"length"`
	Head   string          `json:"head"`
	Error  *IntegrityIssue `json:"error,omitempty"`
}

// IntegrityIssue points at the first block that failed verification
type IntegrityIssue struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// SimulationState is a snapshot of the running community simulation
type SimulationState struct {
	Tick         int        `json:"tick"`
	Nodes        []NodeInfo `json:"nodes"`
	Pool         PoolInfo   `json:"pool"`
	LedgerLength int        `json:"ledger_length"`
}

// NodeInfo represents one simulated household
type NodeInfo struct {
	ID              string  `json:"id"`
	Balance         float64 `json:"balance"`
	ProductionRate  float64 `json:"production_rate"`
	ConsumptionRate float64 `json:"consumption_rate"`
}

// PoolInfo represents the shared storage pool
type PoolInfo struct {
	Stored   float64 `json:"stored"`
	Capacity float64 `json:"capacity"`
	Headroom float64 `json:"headroom"`
}

// StepResponse represents the result of advancing the simulation
type StepResponse struct {
	Reports []TickReport    `json:"reports"`
	State   SimulationState `json:"state"`
}

// TickReport summarizes one simulated tick
type TickReport struct {
	Tick          int       `json:"tick"`
	Block         BlockInfo `json:"block"`
	Consumed      float64   `json:"consumed"`
	Produced      float64   `json:"produced"`
	Withdrawn     float64   `json:"withdrawn"`
	StoredInPool  float64   `json:"stored_in_pool"`
	StoredLocally float64   `json:"stored_locally"`
	PoolLevel     float64   `json:"pool_level"`
	Trades        int       `json:"trades"`
	FailedTrades  int       `json:"failed_trades"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status       string `json:"status"`
	LedgerLength int    `json:"ledger_length"`
	LedgerValid  bool   `json:"ledger_valid"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
