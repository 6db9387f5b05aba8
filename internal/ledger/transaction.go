package ledger

import "fmt"

// Kind classifies a ledger transaction.
// Keep these values stable; they are part of every block hash.
type Kind string

const (
	KindGenesis          Kind = "GENESIS"
	KindStoredPool       Kind = "STORED_POOL"
	KindStoredLocal      Kind = "STORED_LOCAL"
	KindWithdraw         Kind = "WITHDRAW"
	KindWithdrawRejected Kind = "WITHDRAW_REJECTED"
	KindTrade            Kind = "TRADE"
	KindTradeFailed      Kind = "TRADE_FAILED"
	KindBalanceUpdate    Kind = "BALANCE_UPDATE"
	KindPoolLevel        Kind = "POOL_LEVEL"
	KindTransfer         Kind = "TRANSFER"
)

// Transaction records one event. Field order is the canonical serialization
// order used for hashing; do not reorder.
type Transaction struct {
	Kind        Kind    `json:"kind"`
	From        string  `json:"from,omitempty"`
	To          string  `json:"to,omitempty"`
	Amount      float64 `json:"amount"`
	Cost        float64 `json:"cost,omitempty"`
	FromBalance float64 `json:"from_balance,omitempty"`
	ToBalance   float64 `json:"to_balance,omitempty"`
	Memo        string  `json:"memo"`
}

func (t Transaction) String() string { return t.Memo }

func StoredInPool(node string, amount float64) Transaction {
	return Transaction{
		Kind:   KindStoredPool,
		From:   node,
		Amount: amount,
		Memo:   fmt.Sprintf("%s stored %.2f kWh in the community battery", node, amount),
	}
}

func StoredLocally(node string, amount, balance float64) Transaction {
	return Transaction{
		Kind:        KindStoredLocal,
		From:        node,
		Amount:      amount,
		FromBalance: balance,
		Memo:        fmt.Sprintf("%s stored %.2f kWh in own balance", node, amount),
	}
}

func Withdrew(node string, amount float64) Transaction {
	return Transaction{
		Kind:   KindWithdraw,
		To:     node,
		Amount: amount,
		Memo:   fmt.Sprintf("%s withdrew %.2f kWh from the community battery", node, amount),
	}
}

func WithdrawRejected(node string, amount float64) Transaction {
	return Transaction{
		Kind:   KindWithdrawRejected,
		To:     node,
		Amount: amount,
		Memo:   fmt.Sprintf("%s could not withdraw %.2f kWh from the community battery", node, amount),
	}
}

func Traded(from, to string, amount, fromBalance, toBalance float64) Transaction {
	return Transaction{
		Kind:        KindTrade,
		From:        from,
		To:          to,
		Amount:      amount,
		FromBalance: fromBalance,
		ToBalance:   toBalance,
		Memo:        fmt.Sprintf("%s traded %.2f NRG with %s", from, amount, to),
	}
}

func TradeFailed(from, to string, amount, fromBalance float64) Transaction {
	return Transaction{
		Kind:        KindTradeFailed,
		From:        from,
		To:          to,
		Amount:      amount,
		FromBalance: fromBalance,
		Memo:        fmt.Sprintf("%s failed to trade %.2f NRG with %s (insufficient balance)", from, amount, to),
	}
}

func BalanceUpdate(node string, balance float64) Transaction {
	return Transaction{
		Kind:        KindBalanceUpdate,
		From:        node,
		Amount:      balance,
		FromBalance: balance,
		Memo:        fmt.Sprintf("Update balance: %s has %.2f NRG", node, balance),
	}
}

func PoolLevel(stored float64) Transaction {
	return Transaction{
		Kind:   KindPoolLevel,
		Amount: stored,
		Memo:   fmt.Sprintf("Community Battery: %.2f kWh stored", stored),
	}
}

func Transferred(from, to string, amount, cost float64) Transaction {
	return Transaction{
		Kind:   KindTransfer,
		From:   from,
		To:     to,
		Amount: amount,
		Cost:   cost,
		Memo:   fmt.Sprintf("%s -> %s: %.2f kWh for %.2f", from, to, amount, cost),
	}
}
