package market

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
)

func WriteTransfersCSV(path string, transfers []Transfer) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return EncodeTransfersCSV(f, transfers)
}

func EncodeTransfersCSV(out io.Writer, transfers []Transfer) error {
	w := csv.NewWriter(out)
	defer w.Flush()

	header := []string{
		"seq",
		"phase",
		"from",
		"to",
		"amount",
		"unit_cost",
		"cost",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for i, t := range transfers {
		row := []string{
			strconv.Itoa(i),
			string(t.Phase),
			t.From,
			t.To,
			fmtFloat(t.Amount),
			fmtFloat(t.UnitCost),
			fmtFloat(t.Cost),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func fmtFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', 6, 64)
}
