package ledger

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"time"
)

// WriteCSV writes one row per transaction, tagged with its block.
func WriteCSV(path string, blocks []Block) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return EncodeCSV(f, blocks)
}

func EncodeCSV(out io.Writer, blocks []Block) error {
	w := csv.NewWriter(out)
	defer w.Flush()

	header := []string{
		"block_index",
		"block_hash",
		"prev_hash",
		"timestamp",
		"seq",
		"kind",
		"from",
		"to",
		"amount",
		"cost",
		"from_balance",
		"to_balance",
		"memo",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, b := range blocks {
		for i, tx := range b.Transactions {
			row := []string{
				strconv.Itoa(b.Index),
				b.Hash,
				b.PrevHash,
				b.Timestamp.Format(time.RFC3339Nano),
				strconv.Itoa(i),
				string(tx.Kind),
				tx.From,
				tx.To,
				fmtFloat(tx.Amount),
				fmtFloat(tx.Cost),
				fmtFloat(tx.FromBalance),
				fmtFloat(tx.ToBalance),
				tx.Memo,
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}

	w.Flush()
	return w.Error()
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
