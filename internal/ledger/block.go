package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// GenesisPrevHash is the previous-hash sentinel of block 0.
const GenesisPrevHash = "0"

// Block is an immutable, hash-identified batch of transactions.
type Block struct {
	Index        int           `json:"index"`
	PrevHash     string        `json:"prev_hash"`
	Timestamp    time.Time     `json:"timestamp"`
	Transactions []Transaction `json:"transactions"`
	Hash         string        `json:"hash"`
}

// hashInput is the canonical, order-preserving serialization of a block.
// Timestamps are hashed as unix nanoseconds so the digest does not depend
// on location or monotonic clock readings.
type hashInput struct {
	Index        int           `json:"index"`
	PrevHash     string        `json:"prev_hash"`
	Timestamp    int64         `json:"timestamp"`
	Transactions []Transaction `json:"transactions"`
}

// ComputeHash returns the SHA-256 digest (hex) over the block's fields,
// ignoring the stored Hash.
func (b Block) ComputeHash() string {
	txs := b.Transactions
	if txs == nil {
		txs = []Transaction{}
	}
	raw, err := json.Marshal(hashInput{
		Index:        b.Index,
		PrevHash:     b.PrevHash,
		Timestamp:    b.Timestamp.UnixNano(),
		Transactions: txs,
	})
	if err != nil {
		// Only reachable with a NaN or Inf amount; settlement rejects those.
		panic(fmt.Sprintf("ledger: encode block %d: %v", b.Index, err))
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func newBlock(index int, prevHash string, ts time.Time, txs []Transaction) Block {
	b := Block{
		Index:        index,
		PrevHash:     prevHash,
		Timestamp:    ts,
		Transactions: txs,
	}
	b.Hash = b.ComputeHash()
	return b
}

// clone copies the transaction slice so callers cannot alter a chained block.
func (b Block) clone() Block {
	out := b
	out.Transactions = append([]Transaction(nil), b.Transactions...)
	return out
}

func (b Block) String() string {
	return fmt.Sprintf("Block #%d [Hash: %s]\nPrevious Hash: %s\nTimestamp: %s\nTransactions: %d\n",
		b.Index, b.Hash, b.PrevHash, b.Timestamp.Format(time.RFC3339), len(b.Transactions))
}
