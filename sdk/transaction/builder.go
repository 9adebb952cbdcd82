// Package transaction turns a mutable transaction description into an
// immutable set of per-node, per-chunk bodies that can be signed and
// submitted.
package transaction

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/ledgerlink/ledger-sdk/pkg/errors"
	"github.com/ledgerlink/ledger-sdk/sdk/ledger"
)

const (
	DefaultValidDuration = 120 * time.Second
	DefaultChunkSize     = 1024
	DefaultMaxChunks     = 20
	DefaultMaxFee        = 200_000_000
)

// Builder collects transaction fields until Freeze. After Freeze every
// setter fails with *FrozenStateError.
type Builder struct {
	body          Body
	txID          ledger.TransactionID
	payer         ledger.AccountID
	memo          string
	maxFee        uint64
	validDuration time.Duration
	chunkSize     int
	maxChunks     int
	clock         clock.Clock
	frozen        bool
}

// NewBuilder starts a transaction carrying body.
func NewBuilder(body Body) *Builder {
	return &Builder{
		body:          body,
		maxFee:        DefaultMaxFee,
		validDuration: DefaultValidDuration,
		chunkSize:     DefaultChunkSize,
		maxChunks:     DefaultMaxChunks,
		clock:         clock.New(),
	}
}

func (b *Builder) mutable(op string) error {
	if b.frozen {
		return &FrozenStateError{Op: op}
	}
	return nil
}

func (b *Builder) SetBody(body Body) error {
	if err := b.mutable("SetBody"); err != nil {
		return err
	}
	b.body = body
	return nil
}

func (b *Builder) SetTransactionID(id ledger.TransactionID) error {
	if err := b.mutable("SetTransactionID"); err != nil {
		return err
	}
	b.txID = id
	return nil
}

// SetPayer sets the account a transaction id is generated for when none was
// set explicitly.
func (b *Builder) SetPayer(id ledger.AccountID) error {
	if err := b.mutable("SetPayer"); err != nil {
		return err
	}
	b.payer = id
	return nil
}

func (b *Builder) SetMemo(memo string) error {
	if err := b.mutable("SetMemo"); err != nil {
		return err
	}
	b.memo = memo
	return nil
}

func (b *Builder) SetMaxTransactionFee(fee uint64) error {
	if err := b.mutable("SetMaxTransactionFee"); err != nil {
		return err
	}
	b.maxFee = fee
	return nil
}

func (b *Builder) SetValidDuration(d time.Duration) error {
	if err := b.mutable("SetValidDuration"); err != nil {
		return err
	}
	b.validDuration = d
	return nil
}

func (b *Builder) SetChunkSize(size int) error {
	if err := b.mutable("SetChunkSize"); err != nil {
		return err
	}
	if size <= 0 {
		return errors.Errorf("transaction: chunk size must be positive, got %d", size)
	}
	b.chunkSize = size
	return nil
}

func (b *Builder) SetMaxChunks(n int) error {
	if err := b.mutable("SetMaxChunks"); err != nil {
		return err
	}
	if n <= 0 {
		return errors.Errorf("transaction: max chunks must be positive, got %d", n)
	}
	b.maxChunks = n
	return nil
}

// SetClock sets the clock used to generate transaction ids.
func (b *Builder) SetClock(c clock.Clock) error {
	if err := b.mutable("SetClock"); err != nil {
		return err
	}
	b.clock = c
	return nil
}

func (b *Builder) IsFrozen() bool                      { return b.frozen }
func (b *Builder) TransactionID() ledger.TransactionID { return b.txID }
func (b *Builder) Payer() ledger.AccountID             { return b.payer }

// Freeze builds one canonical body per node for every chunk and marks the
// builder frozen. Bodies of one chunk differ only in the node account id;
// chunk i uses the base transaction id shifted by i nanoseconds.
func (b *Builder) Freeze(nodes []ledger.AccountID) (*Frozen, error) {
	if b.frozen {
		return nil, &FrozenStateError{Op: "Freeze"}
	}
	if b.body == nil {
		return nil, ErrNoBody
	}
	nodes = dedupe(nodes)
	if len(nodes) == 0 {
		return nil, ErrNoNodes
	}

	txID := b.txID
	if txID.IsZero() {
		if b.payer.IsZero() {
			return nil, ErrNoTransactionID
		}
		txID = ledger.GenerateTransactionID(b.payer, b.clock.Now())
	}

	pieces := Chunk(b.body.Content(), b.chunkSize)
	if len(pieces) > b.maxChunks {
		return nil, &ChunkLimitError{Required: len(pieces), Max: b.maxChunks}
	}

	f := &Frozen{
		txID:    txID,
		nodes:   nodes,
		service: b.body.Service(),
		method:  b.body.Method(),
		content: append([]byte(nil), b.body.Content()...),
		chunks:  make([]*frozenChunk, len(pieces)),
	}
	for i, piece := range pieces {
		info := ChunkInfo{Index: i, Total: len(pieces), InitialTransactionID: txID}
		c := &frozenChunk{
			info:   info,
			txID:   txID.WithOffset(i),
			bodies: make(map[ledger.AccountID][]byte, len(nodes)),
		}
		for _, node := range nodes {
			c.bodies[node] = b.marshalBody(c.txID, node, info, piece)
		}
		f.chunks[i] = c
	}

	b.txID = txID
	b.frozen = true
	return f, nil
}

func (b *Builder) marshalBody(id ledger.TransactionID, node ledger.AccountID, info ChunkInfo, content []byte) []byte {
	var out []byte
	out = ledger.AppendMessage(out, fieldTransactionID, id.Marshal())
	out = ledger.AppendMessage(out, fieldNodeAccountID, node.Marshal())
	out = ledger.AppendVarint(out, fieldTransactionFee, b.maxFee)
	out = ledger.AppendMessage(out, fieldValidDuration, ledger.MarshalDuration(b.validDuration))
	out = ledger.AppendString(out, fieldMemo, b.memo)
	return b.body.AppendTo(out, info, content)
}

func dedupe(ids []ledger.AccountID) []ledger.AccountID {
	seen := make(map[ledger.AccountID]bool, len(ids))
	out := make([]ledger.AccountID, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
