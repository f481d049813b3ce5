package simulator

import "sync"

// Battery tracks the remaining charge of a vehicle in percent.
type Battery struct {
	mu        sync.Mutex
	remaining float64
}

func NewBattery(percent float64) *Battery {
	b := &Battery{}
	b.set(percent)
	return b
}

func (b *Battery) set(p float64) {
	switch {
	case p < 0:
		p = 0
	case p > 100:
		p = 100
	}
	b.remaining = p
}

// Drain consumes percent and returns the remaining charge. The charge never
// goes below zero.
func (b *Battery) Drain(percent float64) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.set(b.remaining - percent)
	return b.remaining
}

// Remaining returns the charge in percent.
func (b *Battery) Remaining() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining
}
