package data

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestSettlementCache_ExpiryAndPrune(t *testing.T) {
	c := NewSettlementCache(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	s := &Settlement{}
	c.Put(s)
	if s.ID == "" || !s.CreatedAt.Equal(now) {
		t.Fatalf("Put did not assign id/timestamp: %+v", s)
	}
	if got, ok := c.Get(s.ID); !ok || got != s {
		t.Fatalf("Get(%s) = %v, %v", s.ID, got, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get(s.ID); ok {
		t.Error("expired entry still returned")
	}
	if n := c.Prune(); n != 1 || c.Len() != 0 {
		t.Errorf("Prune removed %d, len %d", n, c.Len())
	}
}

func TestSettlementCache_Nil(t *testing.T) {
	var c *SettlementCache
	c.Put(&Settlement{ID: "x"})
	if _, ok := c.Get("x"); ok {
		t.Fatal("nil cache returned an entry")
	}
	c.RunJanitor(context.Background(), time.Millisecond)
}

func TestSettlementCache_JanitorStops(t *testing.T) {
	c := NewSettlementCache(time.Nanosecond)
	c.Put(&Settlement{ID: "a"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.RunJanitor(ctx, time.Millisecond)
		close(done)
	}()
	deadline := time.After(2 * time.Second)
	for c.Len() != 0 {
		select {
		case <-deadline:
			t.Fatal("janitor never pruned")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestDecodeMarketJSON(t *testing.T) {
	snap, err := DecodeMarketJSON(strings.NewReader(`{
		"grid": {"surplus": 10, "selling_price": 0.1, "buying_price": 0.15, "token_price": 0.12},
		"participants": [{"name": "A", "surplus": 5, "transfer_cost": {"B": 0.01}},
		                 {"name": "B", "demand": 5, "transfer_cost": {"A": 0.01}}]
	}`))
	if err != nil {
		t.Fatalf("DecodeMarketJSON: %v", err)
	}
	if len(snap.Participants) != 2 || snap.Participants[1].Demand != 5 || snap.Grid.TokenPrice != 0.12 {
		t.Errorf("snapshot = %+v", snap)
	}
	if _, err := DecodeMarketJSON(strings.NewReader("{")); err == nil {
		t.Error("expected error on truncated input")
	}
}
