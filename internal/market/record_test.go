package market

import (
	"testing"

	"community-energy/internal/ledger"
)

func TestRecord_CommitsOneBlockPerRound(t *testing.T) {
	houses, grid := communityScenario(t)
	res, err := New(nil).Settle(houses, grid)
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}

	l := ledger.New(nil, nil)
	b := Record(l, res)
	if b.Index != 1 || l.Len() != 2 {
		t.Fatalf("block index %d, ledger len %d", b.Index, l.Len())
	}
	if len(b.Transactions) != len(res.Transfers) {
		t.Fatalf("block has %d transactions, want %d", len(b.Transactions), len(res.Transfers))
	}
	for i, tx := range b.Transactions {
		tr := res.Transfers[i]
		if tx.Kind != ledger.KindTransfer || tx.From != tr.From || tx.To != tr.To || tx.Amount != tr.Amount {
			t.Errorf("tx %d = %+v, transfer %+v", i, tx, tr)
		}
	}
	if len(l.Pending()) != 0 {
		t.Error("pending buffer not cleared")
	}
	if err := l.Verify(); err != nil {
		t.Errorf("Verify: %v", err)
	}
}
