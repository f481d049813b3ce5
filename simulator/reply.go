package simulator

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// ReplyStrategy decides whether and when a task report is sent.
type ReplyStrategy interface {
	Reply(ctx context.Context, send func())
}

// AutoReply sends every report after an optional fixed delay.
type AutoReply struct {
	Delay time.Duration
}

// Reply implements ReplyStrategy.
func (a AutoReply) Reply(ctx context.Context, send func()) {
	if !sleep(ctx, a.Delay) {
		return
	}
	send()
}

// RandomReply drops reports with the configured probability and waits for
// the specified delay before sending.
type RandomReply struct {
	Delay    time.Duration
	DropRate float64

	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomReply(delay time.Duration, dropRate float64, seed int64) *RandomReply {
	return &RandomReply{Delay: delay, DropRate: dropRate, rng: rand.New(rand.NewSource(seed))}
}

// Reply implements ReplyStrategy.
func (r *RandomReply) Reply(ctx context.Context, send func()) {
	if r.DropRate > 0 {
		r.mu.Lock()
		drop := r.rng.Float64() < r.DropRate
		r.mu.Unlock()
		if drop {
			return
		}
	}
	if !sleep(ctx, r.Delay) {
		return
	}
	send()
}

// sleep waits d and reports false when ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
