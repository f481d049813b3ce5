package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kilianp07/mtrr/core/events"
)

func TestTypedBusPublishSubscribe(t *testing.T) {
	bus := NewTyped[events.Event]()
	ch := bus.Subscribe()
	assert.Equal(t, 1, bus.Subscribers())
	bus.Publish(events.MissionEvent{MissionID: 3, State: "started"})
	v := <-ch
	if ev, ok := v.(events.MissionEvent); !ok || ev.MissionID != 3 {
		t.Fatalf("unexpected event %#v", v)
	}
	bus.Unsubscribe(ch)
	assert.Equal(t, 0, bus.Subscribers())
}

func TestTypedBusDropsOnFullBuffer(t *testing.T) {
	bus := NewTyped[int](WithBuffer(1))
	ch := bus.Subscribe()
	bus.Publish(1)
	bus.Publish(2)
	assert.Equal(t, uint64(1), bus.Dropped())
	assert.Equal(t, 1, <-ch)
}

func TestTypedBusClose(t *testing.T) {
	bus := NewTyped[int]()
	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()
	bus.Close()
	if _, ok := <-ch1; ok {
		t.Fatalf("expected ch1 closed")
	}
	if _, ok := <-ch2; ok {
		t.Fatalf("expected ch2 closed")
	}
	bus.Publish(1)
	if _, ok := <-bus.Subscribe(); ok {
		t.Fatalf("subscribe after close must return a closed channel")
	}
}

func TestTypedBusUnsubscribeAfterClose(t *testing.T) {
	bus := NewTyped[float64]()
	ch := bus.Subscribe()
	bus.Close()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("panic on Unsubscribe after Close: %v", r)
		}
	}()
	bus.Unsubscribe(ch)
}
