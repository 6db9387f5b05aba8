package market

import "community-energy/internal/ledger"

// Record appends one TRANSFER record per transfer to l and commits them as a
// single block. The caller must ensure no other writer has pending records.
func Record(l *ledger.Ledger, res *Result) ledger.Block {
	for _, t := range res.Transfers {
		l.AppendPending(ledger.Transferred(t.From, t.To, t.Amount, t.Cost))
	}
	return l.Commit(nil)
}
