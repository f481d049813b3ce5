package dedup

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRecordOnce(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	k := Key{Kind: KindTask, MissionID: 1, VehicleID: 2, Subtype: 4, SeqOp: 9, Status: 2, HasStatus: true}

	fresh, err := s.Record(ctx, k)
	require.NoError(t, err)
	assert.True(t, fresh)
	fresh, _ = s.Record(ctx, k)
	assert.False(t, fresh)

	other := k
	other.Status = 1
	fresh, _ = s.Record(ctx, other)
	assert.True(t, fresh, "different status is a different report")

	seen, _ := s.Seen(ctx, k)
	assert.True(t, seen)
}

func TestMemoryStoreConcurrentRecord(t *testing.T) {
	s := NewMemoryStore()
	k := Key{Kind: KindEvent, MissionID: 3, VehicleID: 1}
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := s.Record(context.Background(), k); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Fatalf("expected one winner, got %d", wins.Load())
	}
}

func TestMemoryStoreReset(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_, _ = s.Record(ctx, Key{MissionID: 1})
	_, _ = s.Record(ctx, Key{MissionID: 2})
	require.NoError(t, s.Reset(ctx, 1))
	assert.Equal(t, 1, s.Len())
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "task:1:2:4:9:-3", Key{Kind: KindTask, MissionID: 1, VehicleID: 2, Subtype: 4, SeqOp: 9, Status: -3, HasStatus: true}.String())
	assert.Equal(t, "event:1:2:0:9", Key{Kind: KindEvent, MissionID: 1, VehicleID: 2, SeqOp: 9}.String())
}
