package event

// EventDataKey defines standard keys used in event data
type EventDataKey string

const (
	// Common data keys
	KeyError   EventDataKey = "error"
	KeyNode    EventDataKey = "node"
	KeyAddress EventDataKey = "address"
	KeyAttempt EventDataKey = "attempt"
	KeyOutcome EventDataKey = "outcome"
	KeyStatus  EventDataKey = "status"
	KeyDelay   EventDataKey = "delay"

	// Execution summary keys
	KeyAttempts   EventDataKey = "attempts"
	KeyCandidates EventDataKey = "candidates"
	KeyDurationMS EventDataKey = "duration_ms"
	KeySummary    EventDataKey = "summary"

	// Transaction keys
	KeyTransactionID EventDataKey = "transaction_id"
	KeyChunkIndex    EventDataKey = "chunk_index"
	KeyChunkTotal    EventDataKey = "chunk_total"
)
