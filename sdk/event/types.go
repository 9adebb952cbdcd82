package event

import (
	"time"
)

// EventType represents the type of event
type EventType string

// Event types constants
const (
	// Execution lifecycle events
	ExecutionStarted   EventType = "execution.started"
	ExecutionCompleted EventType = "execution.completed"
	ExecutionFailed    EventType = "execution.failed"

	// Per-node attempt events
	AttemptStarted   EventType = "attempt.started"
	AttemptSucceeded EventType = "attempt.succeeded"
	AttemptFailed    EventType = "attempt.failed"

	// Node health events
	NodeBackoff        EventType = "node.backoff"
	NodeBadCertificate EventType = "node.bad_certificate"

	// Chunked transaction progress
	ChunkCompleted EventType = "chunk.completed"
)

// Event represents an event emitted by the system
type Event struct {
	Type        EventType              // Type of event
	ExecutionID string                 // ID of the execution that emitted the event
	RequestKind string                 // Kind of request (transaction, query)
	Timestamp   time.Time              // When the event occurred
	Data        map[string]interface{} // Additional contextual data
}

func NewEvent(eventType EventType, executionID, requestKind string, data map[string]interface{}) Event {
	if data == nil {
		data = make(map[string]interface{})
	}

	return Event{
		Type:        eventType,
		ExecutionID: executionID,
		RequestKind: requestKind,
		Timestamp:   time.Now(),
		Data:        data,
	}
}

// Handler is a function that processes events
type Handler func(Event)
