package discovery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrCancelled is returned when a wait is interrupted by its context.
var ErrCancelled = errors.New("discovery cancelled")

// errTimeout is returned when no matching response arrived in time.
var errTimeout = errors.New("discovery response timeout")

// Flags is a snapshot of the handshake progress.
type Flags struct {
	SetNeighboursReceived    bool `json:"set_neighbours_received"`
	SetNeighboursSuccessful  bool `json:"set_neighbours_successful"`
	GetNeighboursReceived    bool `json:"get_neighbours_received"`
	GetNeighboursSuccessful  bool `json:"get_neighbours_successful"`
	StartDiscoveryReceived   bool `json:"start_discovery_received"`
	StartDiscoverySuccessful bool `json:"start_discovery_successful"`
	CDTReady                 bool `json:"cdt_ready"`
}

// State holds the flags and wakes waiters whenever they change.
type State struct {
	mu      sync.Mutex
	flags   Flags
	changed chan struct{}
}

// NewState returns a state with every flag cleared.
func NewState() *State {
	return &State{changed: make(chan struct{})}
}

// Snapshot returns the current flags.
func (s *State) Snapshot() Flags {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flags
}

// Update applies fn to the flags and wakes every waiter.
func (s *State) Update(fn func(*Flags)) {
	s.mu.Lock()
	fn(&s.flags)
	close(s.changed)
	s.changed = make(chan struct{})
	s.mu.Unlock()
}

// Reset clears every flag, CDTReady included.
func (s *State) Reset() {
	s.Update(func(f *Flags) { *f = Flags{} })
}

// CDTReady reports whether acoustic coordination can be trusted.
func (s *State) CDTReady() bool {
	return s.Snapshot().CDTReady
}

// Wait blocks until cond holds, the timeout elapses or ctx is done. A zero
// timeout waits without bound.
func (s *State) Wait(ctx context.Context, timeout time.Duration, cond func(Flags) bool) error {
	var deadline <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		deadline = t.C
	}
	for {
		s.mu.Lock()
		ok := cond(s.flags)
		ch := s.changed
		s.mu.Unlock()
		if ok {
			return nil
		}
		select {
		case <-ch:
		case <-deadline:
			return errTimeout
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		}
	}
}
