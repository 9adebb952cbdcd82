package transaction

import (
	"fmt"

	"github.com/ledgerlink/ledger-sdk/pkg/errors"
)

var (
	// ErrNoNodes is returned by Freeze without target nodes.
	ErrNoNodes = errors.New("transaction: freeze requires at least one node")
	// ErrNoTransactionID is returned by Freeze when neither a transaction id
	// nor a payer is set.
	ErrNoTransactionID = errors.New("transaction: transaction id or payer required")
	// ErrNoBody is returned by Freeze without a body.
	ErrNoBody = errors.New("transaction: body required")
)

// FrozenStateError is returned by any content-mutating call after Freeze.
type FrozenStateError struct {
	Op string
}

func (e *FrozenStateError) Error() string {
	return fmt.Sprintf("transaction: %s called on a frozen transaction", e.Op)
}

// ChunkLimitError is returned when content needs more chunks than allowed.
type ChunkLimitError struct {
	Required int
	Max      int
}

func (e *ChunkLimitError) Error() string {
	return fmt.Sprintf("transaction: content requires %d chunks, limit is %d", e.Required, e.Max)
}

// UnknownChunkError is returned when a chunk index or node is not part of
// the frozen transaction.
type UnknownChunkError struct {
	Chunk int
	Node  string
}

func (e *UnknownChunkError) Error() string {
	return fmt.Sprintf("transaction: no body for chunk %d node %s", e.Chunk, e.Node)
}
