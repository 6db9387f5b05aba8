package data

import (
	"encoding/hex"
	"encoding/json"

	"community-energy/internal/model"

	"github.com/zeebo/blake3"
)

// Fingerprint identifies a market input: equal snapshots, including
// participant order, share a fingerprint. Map keys are encoded sorted.
func Fingerprint(snap model.MarketSnapshot) (string, error) {
	raw, err := json.Marshal(snap)
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
