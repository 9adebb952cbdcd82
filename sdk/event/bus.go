package event

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/ledgerlink/ledger-sdk/sdk/log"
)

// DefaultMaxWorkers bounds concurrently running handlers when NewBus is given
// a non-positive count.
const DefaultMaxWorkers = 50

// Publisher is the narrow interface the execution engine emits through.
type Publisher interface {
	Publish(event Event)
}

// Bus manages event subscriptions and dispatching
type Bus struct {
	subscribers      map[EventType][]Handler // Type-specific handlers
	wildcardHandlers []Handler               // Handlers for all events
	mu               sync.RWMutex
	logger           log.Logger
	workerPool       chan struct{} // Limits concurrently running handlers
	inflight         sync.WaitGroup
	closed           bool
}

var _ Publisher = (*Bus)(nil)

// NewBus creates a new event bus
func NewBus(logger log.Logger, maxWorkers int) *Bus {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}

	return &Bus{
		subscribers: make(map[EventType][]Handler),
		logger:      logger,
		workerPool:  make(chan struct{}, maxWorkers),
	}
}

// Subscribe registers a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.logger.Debug(context.Background(), "Subscribing handler to event type", "eventType", eventType)
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers a handler for all event types
func (b *Bus) SubscribeAll(handler Handler) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	b.logger.Debug(context.Background(), "Subscribing handler to all event types")
	b.wildcardHandlers = append(b.wildcardHandlers, handler)
}

// dispatch runs handler on its own goroutine with its own copy of event.
// The goroutine waits for a worker slot, so the publisher never blocks on
// slow handlers. The caller has already added to inflight.
func (b *Bus) dispatch(handler Handler, event Event) {
	go func() {
		b.workerPool <- struct{}{}
		defer func() {
			<-b.workerPool
			b.inflight.Done()

			if r := recover(); r != nil {
				b.logger.Error(context.Background(),
					"Event handler panicked",
					"error", r,
					"eventType", event.Type,
					"executionID", event.ExecutionID,
					"stackTrace", string(debug.Stack()),
				)
			}
		}()

		handler(copyEvent(event))
	}()
}

func copyEvent(e Event) Event {
	copied := e
	copied.Data = make(map[string]interface{}, len(e.Data))
	for k, v := range e.Data {
		copied.Data[k] = v
	}
	return copied
}

// Publish sends an event to all relevant subscribers. Events published after
// Close are dropped. Handlers are snapshotted under the lock and run without
// it, so a handler may subscribe further handlers.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	handlers := make([]Handler, 0, len(b.subscribers[event.Type])+len(b.wildcardHandlers))
	handlers = append(handlers, b.subscribers[event.Type]...)
	handlers = append(handlers, b.wildcardHandlers...)
	// counted before Close can observe the bus as open
	b.inflight.Add(len(handlers))
	b.mu.RUnlock()

	b.logger.Debug(context.Background(), "Publishing event",
		"type", event.Type,
		"executionID", event.ExecutionID,
		"requestKind", event.RequestKind,
		"handlerCount", len(handlers))

	for _, handler := range handlers {
		b.dispatch(handler, event)
	}
}

// WaitForHandlers blocks until every dispatched handler has returned.
func (b *Bus) WaitForHandlers() {
	b.inflight.Wait()
}

// Close stops accepting events and waits for in-flight handlers.
func (b *Bus) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	b.WaitForHandlers()
}

// Emit builds and publishes an event on p. A nil p is a no-op.
func Emit(p Publisher, eventType EventType, executionID, requestKind string, data map[string]interface{}) {
	if p == nil {
		return
	}
	p.Publish(NewEvent(eventType, executionID, requestKind, data))
}
