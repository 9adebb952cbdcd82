package event

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestBusDispatchesByTypeAndWildcard(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	bus := NewBus(nil, 4)

	var typed, all atomic.Int32
	bus.Subscribe(AttemptFailed, func(e Event) {
		assert.Equal(t, AttemptFailed, e.Type)
		typed.Add(1)
	})
	bus.SubscribeAll(func(Event) { all.Add(1) })

	bus.Publish(NewEvent(AttemptFailed, "exec-1", "transaction", nil))
	bus.Publish(NewEvent(ExecutionCompleted, "exec-1", "transaction", nil))
	bus.WaitForHandlers()

	assert.EqualValues(t, 1, typed.Load())
	assert.EqualValues(t, 2, all.Load())
	bus.Close()
}

func TestBusHandlersReceiveCopies(t *testing.T) {
	bus := NewBus(nil, 2)

	var mu sync.Mutex
	var seen []string
	bus.SubscribeAll(func(e Event) {
		e.Data["mutated"] = true
		mu.Lock()
		seen = append(seen, e.ExecutionID)
		mu.Unlock()
	})

	data := map[string]interface{}{string(KeyNode): "0.0.3"}
	bus.Publish(NewEvent(AttemptStarted, "exec-2", "query", data))
	bus.WaitForHandlers()

	_, mutated := data["mutated"]
	assert.False(t, mutated)
	require.Len(t, seen, 1)
	assert.Equal(t, "exec-2", seen[0])
	bus.Close()
}

func TestBusRecoversFromHandlerPanic(t *testing.T) {
	bus := NewBus(nil, 1)

	var after atomic.Int32
	bus.Subscribe(NodeBackoff, func(Event) { panic("boom") })
	bus.Subscribe(NodeBackoff, func(Event) { after.Add(1) })

	require.NotPanics(t, func() {
		bus.Publish(NewEvent(NodeBackoff, "exec-3", "transaction", nil))
		bus.WaitForHandlers()
	})
	assert.EqualValues(t, 1, after.Load())
	bus.Close()
}

func TestBusPublishDoesNotWaitForBusyWorkers(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	bus := NewBus(nil, 1)

	release := make(chan struct{})
	var late atomic.Int32
	bus.Subscribe(AttemptStarted, func(Event) {
		<-release
		// subscribing from inside a handler must not deadlock
		bus.Subscribe(AttemptSucceeded, func(Event) { late.Add(1) })
	})

	published := make(chan struct{})
	go func() {
		for i := 0; i < 3; i++ {
			bus.Publish(NewEvent(AttemptStarted, "exec-7", "query", nil))
		}
		close(published)
	}()
	select {
	case <-published:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full worker pool")
	}

	close(release)
	bus.WaitForHandlers()
	bus.Publish(NewEvent(AttemptSucceeded, "exec-7", "query", nil))
	bus.Close()
	assert.EqualValues(t, 3, late.Load())
}

func TestBusDropsEventsAfterClose(t *testing.T) {
	bus := NewBus(nil, 0)

	var calls atomic.Int32
	bus.SubscribeAll(func(Event) { calls.Add(1) })
	bus.Close()

	bus.Publish(NewEvent(ExecutionStarted, "exec-4", "query", nil))
	bus.WaitForHandlers()
	assert.Zero(t, calls.Load())
}

func TestEmitNilPublisher(t *testing.T) {
	assert.NotPanics(t, func() {
		Emit(nil, ExecutionFailed, "exec-5", "query", nil)
	})

	bus := NewBus(nil, 1)
	got := make(chan Event, 1)
	bus.Subscribe(ChunkCompleted, func(e Event) { got <- e })
	Emit(bus, ChunkCompleted, "exec-6", "transaction", map[string]interface{}{string(KeyChunkIndex): 1})
	bus.WaitForHandlers()

	e := <-got
	assert.Equal(t, 1, e.Data[string(KeyChunkIndex)])
	assert.False(t, e.Timestamp.IsZero())
	bus.Close()
}
