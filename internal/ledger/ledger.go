package ledger

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// IntegrityError reports the first block that fails verification.
// The ledger never repairs a broken chain; callers decide what to do.
type IntegrityError struct {
	Index  int
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("ledger integrity violation at block %d: %s", e.Index, e.Reason)
}

// ErrEmptyChain is returned when restoring from a chain without a genesis block.
var ErrEmptyChain = errors.New("chain has no genesis block")

// CommitHook is called with every newly committed block, after it is chained.
// Hooks run one commit at a time, in block index order. A hook must not
// call Commit on the same ledger.
type CommitHook func(Block)

// Ledger is the append-only chain of blocks plus the pending transaction buffer.
type Ledger struct {
	// commitMu orders whole commits, hooks included.
	commitMu sync.Mutex

	mu      sync.RWMutex
	chain   []Block
	pending []Transaction
	hooks   []CommitHook

	now    func() time.Time
	logger *zap.Logger
}

// New creates a ledger holding only the genesis block.
// now may be nil, in which case time.Now is used.
func New(logger *zap.Logger, now func() time.Time) *Ledger {
	l := newLedger(logger, now)
	genesis := newBlock(0, GenesisPrevHash, l.now(), []Transaction{{
		Kind: KindGenesis,
		Memo: "Genesis Block",
	}})
	l.chain = []Block{genesis}
	return l
}

// Restore adopts a previously persisted chain after verifying it.
// A chain that fails verification is rejected, not repaired.
func Restore(blocks []Block, logger *zap.Logger, now func() time.Time) (*Ledger, error) {
	if len(blocks) == 0 {
		return nil, ErrEmptyChain
	}
	if err := VerifyChain(blocks); err != nil {
		return nil, err
	}
	l := newLedger(logger, now)
	l.chain = make([]Block, len(blocks))
	for i, b := range blocks {
		l.chain[i] = b.clone()
	}
	l.logger.Sugar().Infow("Ledger restored",
		"blocks", len(blocks),
		"head", l.chain[len(l.chain)-1].Hash,
	)
	return l, nil
}

func newLedger(logger *zap.Logger, now func() time.Time) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Ledger{now: now, logger: logger}
}

// OnCommit registers a hook that observes every future commit.
func (l *Ledger) OnCommit(h CommitHook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, h)
}

// AppendPending buffers a transaction for the next commit.
func (l *Ledger) AppendPending(tx Transaction) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = append(l.pending, tx)
	l.logger.Debug("Transaction added", zap.String("kind", string(tx.Kind)), zap.String("memo", tx.Memo))
}

// Commit seals the pending buffer into a new block linked to the current head.
// If summary is non-nil it is appended as the block's last transaction.
// The pending buffer is cleared once the block is chained.
func (l *Ledger) Commit(summary *Transaction) Block {
	l.commitMu.Lock()
	defer l.commitMu.Unlock()

	b, hooks := l.seal(summary)
	l.logger.Sugar().Infow("Block committed",
		"index", b.Index,
		"hash", b.Hash,
		"prev_hash", b.PrevHash,
		"transactions", len(b.Transactions),
	)
	for _, h := range hooks {
		h(b.clone())
	}
	return b.clone()
}

// seal chains the next block. If hashing panics the chain and the pending
// buffer are left as they were.
func (l *Ledger) seal(summary *Transaction) (Block, []CommitHook) {
	l.mu.Lock()
	defer l.mu.Unlock()

	txs := make([]Transaction, 0, len(l.pending)+1)
	txs = append(txs, l.pending...)
	if summary != nil {
		txs = append(txs, *summary)
	}
	head := l.chain[len(l.chain)-1]
	b := newBlock(len(l.chain), head.Hash, l.now(), txs)
	l.chain = append(l.chain, b)
	l.pending = nil
	return b, append([]CommitHook(nil), l.hooks...)
}

// Verify recomputes every block hash and checks linkage to its predecessor.
func (l *Ledger) Verify() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return VerifyChain(l.chain)
}

// Valid is Verify reduced to a boolean.
func (l *Ledger) Valid() bool { return l.Verify() == nil }

// VerifyChain checks a block sequence starting at genesis.
func VerifyChain(blocks []Block) error {
	for i, b := range blocks {
		if b.Index != i {
			return &IntegrityError{Index: i, Reason: fmt.Sprintf("stored index %d", b.Index)}
		}
		if got := b.ComputeHash(); got != b.Hash {
			return &IntegrityError{Index: i, Reason: fmt.Sprintf("hash mismatch: stored %s, computed %s", b.Hash, got)}
		}
		want := GenesisPrevHash
		if i > 0 {
			want = blocks[i-1].Hash
		}
		if b.PrevHash != want {
			return &IntegrityError{Index: i, Reason: fmt.Sprintf("previous hash %s does not link to %s", b.PrevHash, want)}
		}
	}
	return nil
}

// Blocks returns a copy of the chain.
func (l *Ledger) Blocks() []Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Block, len(l.chain))
	for i, b := range l.chain {
		out[i] = b.clone()
	}
	return out
}

// Block returns the block at index i.
func (l *Ledger) Block(i int) (Block, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i < 0 || i >= len(l.chain) {
		return Block{}, false
	}
	return l.chain[i].clone(), true
}

func (l *Ledger) Latest() Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.chain[len(l.chain)-1].clone()
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.chain)
}

// Pending returns a copy of the uncommitted transactions.
func (l *Ledger) Pending() []Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Transaction(nil), l.pending...)
}
