package model

import (
	"math/rand"
	"testing"
)

func TestPool_StoreRejectsOverflow(t *testing.T) {
	p, err := NewPool(10)
	if err != nil {
		t.Fatalf("NewPool: %v", err)
	}
	if !p.Store(6) {
		t.Fatal("expected store of 6 to succeed")
	}
	if p.Store(5) {
		t.Fatal("expected store of 5 to be rejected (6+5 > 10)")
	}
	if got := p.Stored(); got != 6 {
		t.Errorf("rejected store must not change level, got %v", got)
	}
	if !p.Store(4) {
		t.Fatal("expected store up to exact capacity to succeed")
	}
	if got := p.Headroom(); got != 0 {
		t.Errorf("headroom = %v, want 0", got)
	}
}

func TestPool_WithdrawAllOrNothing(t *testing.T) {
	p, _ := NewPool(10)
	p.Store(3)

	if got := p.Withdraw(5); got != 0 {
		t.Errorf("Withdraw(5) = %v, want 0", got)
	}
	if got := p.Stored(); got != 3 {
		t.Errorf("rejected withdraw changed level to %v", got)
	}
	if got := p.Withdraw(2); got != 2 {
		t.Errorf("Withdraw(2) = %v, want 2", got)
	}
	if got := p.Stored(); got != 1 {
		t.Errorf("stored = %v, want 1", got)
	}
}

func TestPool_NegativeAmountsRejected(t *testing.T) {
	p, _ := NewPool(10)
	p.Store(5)
	if p.Store(-1) {
		t.Error("negative store accepted")
	}
	if got := p.Withdraw(-1); got != 0 {
		t.Errorf("negative withdraw returned %v", got)
	}
	if got := p.Stored(); got != 5 {
		t.Errorf("stored = %v, want 5", got)
	}
}

func TestPool_NegativeCapacity(t *testing.T) {
	if _, err := NewPool(-1); err == nil {
		t.Fatal("expected error for negative capacity")
	}
}

func TestPool_BoundsUnderRandomOperations(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	p, _ := NewPool(25)
	for i := 0; i < 2000; i++ {
		amount := rng.Float64() * 12
		if rng.Intn(2) == 0 {
			p.Store(amount)
		} else {
			p.Withdraw(amount)
		}
		s := p.Stored()
		if s < 0 || s > p.Capacity() {
			t.Fatalf("step %d: stored %v outside [0, %v]", i, s, p.Capacity())
		}
	}
}

func TestNode_Transfer(t *testing.T) {
	a := &Node{ID: "House_1", Balance: 3}
	b := &Node{ID: "House_2", Balance: 1}

	if a.Transfer(b, 4) {
		t.Fatal("transfer beyond balance succeeded")
	}
	if a.Balance != 3 || b.Balance != 1 {
		t.Fatalf("failed transfer changed balances: %v %v", a.Balance, b.Balance)
	}
	if !a.Transfer(b, 2.5) {
		t.Fatal("covered transfer failed")
	}
	if a.Balance != 0.5 || b.Balance != 3.5 {
		t.Errorf("balances after transfer: %v %v", a.Balance, b.Balance)
	}
}
