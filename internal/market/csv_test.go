package market

import (
	"bytes"
	"encoding/csv"
	"testing"
)

func TestEncodeTransfersCSV(t *testing.T) {
	houses, grid := communityScenario(t)
	res, err := New(nil).Settle(houses, grid)
	if err != nil {
		t.Fatalf("Settle: %v", err)
	}

	var buf bytes.Buffer
	if err := EncodeTransfersCSV(&buf, res.Transfers); err != nil {
		t.Fatalf("EncodeTransfersCSV: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(rows) != len(res.Transfers)+1 {
		t.Fatalf("rows = %d, want %d", len(rows), len(res.Transfers)+1)
	}
	if rows[0][1] != "phase" {
		t.Errorf("header = %v", rows[0])
	}
	want := []string{"1", "PEER", "C", "D", "15.000000", "0.020000", "0.300000"}
	for i, v := range want {
		if rows[2][i] != v {
			t.Errorf("row 2 col %d = %q, want %q", i, rows[2][i], v)
		}
	}
}
