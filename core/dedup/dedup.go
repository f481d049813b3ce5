// Package dedup filters re-delivered vehicle reports.
package dedup

import (
	"context"
	"fmt"
	"sync"
)

// Kind separates the key spaces of the report streams.
type Kind string

const (
	KindTask  Kind = "task"
	KindEvent Kind = "event"
)

// Key identifies one distinct report. Status is part of the key only when
// HasStatus is set.
type Key struct {
	Kind      Kind
	MissionID int
	VehicleID int
	Subtype   byte
	SeqOp     byte
	Status    int
	HasStatus bool
}

func (k Key) String() string {
	s := fmt.Sprintf("%s:%d:%d:%d:%d", k.Kind, k.MissionID, k.VehicleID, k.Subtype, k.SeqOp)
	if k.HasStatus {
		s += fmt.Sprintf(":%d", k.Status)
	}
	return s
}

// Store records report keys. Record must check and insert atomically.
type Store interface {
	// Record inserts the key and reports whether it was new.
	Record(ctx context.Context, k Key) (bool, error)
	Seen(ctx context.Context, k Key) (bool, error)
	// Reset forgets every key of a mission.
	Reset(ctx context.Context, missionID int) error
}

// MemoryStore keeps keys in process memory for the lifetime of a mission.
type MemoryStore struct {
	mu   sync.Mutex
	keys map[Key]struct{}
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[Key]struct{})}
}

func (s *MemoryStore) Record(_ context.Context, k Key) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[k]; ok {
		return false, nil
	}
	s.keys[k] = struct{}{}
	return true, nil
}

func (s *MemoryStore) Seen(_ context.Context, k Key) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[k]
	return ok, nil
}

func (s *MemoryStore) Reset(_ context.Context, missionID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.keys {
		if k.MissionID == missionID {
			delete(s.keys, k)
		}
	}
	return nil
}

// Len returns the number of recorded keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}
