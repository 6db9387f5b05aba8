package data

import (
	"context"
	"sync"
	"time"

	"community-energy/internal/analysis"
	"community-energy/internal/ledger"
	"community-energy/internal/market"
	"community-energy/internal/model"

	"github.com/google/uuid"
)

// DefaultSettlementTTL is how long a settlement stays retrievable by id.
const DefaultSettlementTTL = time.Hour

// Settlement is one settled round as kept for later retrieval.
type Settlement struct {
	ID          string
	CreatedAt   time.Time
	Input       model.MarketSnapshot
	InputDigest string               // Fingerprint of Input
	Final       model.MarketSnapshot // positions after settlement
	Result      *market.Result
	Summary     analysis.RoundSummary
	// Block is set when the round was committed to the ledger.
	Block *ledger.Block
}

type cacheEntry struct {
	settlement *Settlement
	expiresAt  time.Time
}

// SettlementCache keeps settled rounds in memory for a fixed TTL.
// A nil cache is valid and stores nothing.
type SettlementCache struct {
	mu    sync.RWMutex
	store map[string]*cacheEntry
	ttl   time.Duration
	now   func() time.Time
}

func NewSettlementCache(ttl time.Duration) *SettlementCache {
	if ttl <= 0 {
		ttl = DefaultSettlementTTL
	}
	return &SettlementCache{
		store: make(map[string]*cacheEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

// NewSettlementID returns a fresh round identifier.
func NewSettlementID() string {
	return uuid.NewString()
}

// Get retrieves a settlement if present and not expired.
func (c *SettlementCache) Get(id string) (*Settlement, bool) {
	if c == nil {
		return nil, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.store[id]
	if !ok || c.now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.settlement, true
}

// Put stores s under s.ID, assigning an id and timestamp if missing.
func (c *SettlementCache) Put(s *Settlement) {
	if c == nil || s == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if s.ID == "" {
		s.ID = NewSettlementID()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	c.store[s.ID] = &cacheEntry{settlement: s, expiresAt: now.Add(c.ttl)}
}

func (c *SettlementCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Prune removes expired entries and returns how many were dropped.
func (c *SettlementCache) Prune() int {
	if c == nil {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n := 0
	for id, entry := range c.store {
		if now.After(entry.expiresAt) {
			delete(c.store, id)
			n++
		}
	}
	return n
}

// RunJanitor prunes expired entries every interval until ctx is done.
func (c *SettlementCache) RunJanitor(ctx context.Context, interval time.Duration) {
	if c == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Prune()
		}
	}
}
