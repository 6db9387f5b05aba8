package data

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"community-energy/internal/model"
)

// LoadMarketJSON reads a market snapshot stored as JSON.
func LoadMarketJSON(path string) (model.MarketSnapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.MarketSnapshot{}, err
	}
	defer f.Close()
	return DecodeMarketJSON(f)
}

func DecodeMarketJSON(r io.Reader) (model.MarketSnapshot, error) {
	var snap model.MarketSnapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return model.MarketSnapshot{}, fmt.Errorf("decode market: %w", err)
	}
	return snap, nil
}

