package model

import (
	"errors"
	"sync"
)

// Pool is the community battery: a capacity-bounded shared energy buffer.
// Units: kWh.
//
// Store and Withdraw are all-or-nothing. A request that would leave the
// pool outside [0, Capacity] is rejected and the pool is left unchanged;
// rejections are reported through the return value, never as an error.
type Pool struct {
	mu       sync.Mutex
	capacity float64
	stored   float64
}

func NewPool(capacity float64) (*Pool, error) {
	if capacity < 0 {
		return nil, errors.New("pool capacity must be >= 0")
	}
	return &Pool{capacity: capacity}, nil
}

// Store adds amount iff stored+amount <= capacity.
func (p *Pool) Store(amount float64) bool {
	if amount < 0 {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stored+amount > p.capacity {
		return false
	}
	p.stored += amount
	return true
}

// Withdraw removes amount iff stored >= amount and returns it; otherwise 0.
func (p *Pool) Withdraw(amount float64) float64 {
	if amount < 0 {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stored < amount {
		return 0
	}
	p.stored -= amount
	return amount
}

// Stored returns the current level without changing it.
func (p *Pool) Stored() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stored
}

func (p *Pool) Capacity() float64 { return p.capacity }

// Headroom is the amount that can still be stored.
func (p *Pool) Headroom() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.capacity - p.stored
}
