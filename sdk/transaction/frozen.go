package transaction

import (
	"crypto/sha512"
	"sync"

	"github.com/ledgerlink/ledger-sdk/sdk/keys"
	"github.com/ledgerlink/ledger-sdk/sdk/ledger"
)

// Signer produces signatures over transaction bodies.
type Signer interface {
	PublicKey() keys.PublicKey
	Sign(message []byte) []byte
}

type funcSigner struct {
	pub  keys.PublicKey
	sign func([]byte) []byte
}

func (s funcSigner) PublicKey() keys.PublicKey  { return s.pub }
func (s funcSigner) Sign(message []byte) []byte { return s.sign(message) }

// SignerFunc adapts an external signing function, such as a hardware
// wallet, to Signer.
func SignerFunc(pub keys.PublicKey, sign func(message []byte) []byte) Signer {
	return funcSigner{pub: pub, sign: sign}
}

type signature struct {
	pub keys.PublicKey
	sig []byte
}

type frozenChunk struct {
	info   ChunkInfo
	txID   ledger.TransactionID
	bodies map[ledger.AccountID][]byte
	// sigs[node] is kept in first-signed order
	sigs map[ledger.AccountID][]signature
}

// Frozen is a transaction whose bodies are fixed. Only signatures can be
// added. It is safe for concurrent use.
type Frozen struct {
	txID    ledger.TransactionID
	nodes   []ledger.AccountID
	service string
	method  string
	content []byte
	chunks  []*frozenChunk

	mu sync.RWMutex
}

func (f *Frozen) TransactionID() ledger.TransactionID { return f.txID }
func (f *Frozen) Service() string                     { return f.service }
func (f *Frozen) Method() string                      { return f.method }
func (f *Frozen) ChunkCount() int                     { return len(f.chunks) }

// Nodes returns the nodes the transaction was frozen for.
func (f *Frozen) Nodes() []ledger.AccountID {
	return append([]ledger.AccountID(nil), f.nodes...)
}

// HasNode reports whether id is in the freeze set.
func (f *Frozen) HasNode(id ledger.AccountID) bool {
	for _, n := range f.nodes {
		if n == id {
			return true
		}
	}
	return false
}

// Content returns the full chunkable payload.
func (f *Frozen) Content() []byte { return append([]byte(nil), f.content...) }

// ChunkInfo describes chunk i.
func (f *Frozen) ChunkInfo(i int) (ChunkInfo, error) {
	if i < 0 || i >= len(f.chunks) {
		return ChunkInfo{}, &UnknownChunkError{Chunk: i}
	}
	return f.chunks[i].info, nil
}

// ChunkTransactionID is the transaction id of chunk i.
func (f *Frozen) ChunkTransactionID(i int) (ledger.TransactionID, error) {
	if i < 0 || i >= len(f.chunks) {
		return ledger.TransactionID{}, &UnknownChunkError{Chunk: i}
	}
	return f.chunks[i].txID, nil
}

// BodyBytes returns the canonical body of chunk for node.
func (f *Frozen) BodyBytes(chunk int, node ledger.AccountID) ([]byte, error) {
	_, body, err := f.lookup(chunk, node)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), body...), nil
}

func (f *Frozen) lookup(chunk int, node ledger.AccountID) (*frozenChunk, []byte, error) {
	if chunk < 0 || chunk >= len(f.chunks) {
		return nil, nil, &UnknownChunkError{Chunk: chunk, Node: node.String()}
	}
	c := f.chunks[chunk]
	body, ok := c.bodies[node]
	if !ok {
		return nil, nil, &UnknownChunkError{Chunk: chunk, Node: node.String()}
	}
	return c, body, nil
}

// Sign signs every body of every chunk. Signing again with the same public
// key replaces that key's signatures.
func (f *Frozen) Sign(signer Signer) *Frozen {
	pub := signer.PublicKey()

	// sign outside the lock, bodies never change
	type result struct {
		chunk int
		node  ledger.AccountID
		sig   []byte
	}
	var results []result
	for i, c := range f.chunks {
		for _, node := range f.nodes {
			results = append(results, result{chunk: i, node: node, sig: signer.Sign(c.bodies[node])})
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range results {
		c := f.chunks[r.chunk]
		if c.sigs == nil {
			c.sigs = make(map[ledger.AccountID][]signature, len(f.nodes))
		}
		c.sigs[r.node] = upsert(c.sigs[r.node], signature{pub: pub, sig: r.sig})
	}
	return f
}

func upsert(list []signature, s signature) []signature {
	for i := range list {
		if list[i].pub.Equal(s.pub) {
			list[i] = s
			return list
		}
	}
	return append(list, s)
}

// Signatures returns the signatures on chunk for node keyed by hex public key.
func (f *Frozen) Signatures(chunk int, node ledger.AccountID) (map[string][]byte, error) {
	c, _, err := f.lookup(chunk, node)
	if err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string][]byte, len(c.sigs[node]))
	for _, s := range c.sigs[node] {
		out[s.pub.String()] = append([]byte(nil), s.sig...)
	}
	return out, nil
}

// SignedBytes returns the serialized SignedTransaction of chunk for node.
func (f *Frozen) SignedBytes(chunk int, node ledger.AccountID) ([]byte, error) {
	c, body, err := f.lookup(chunk, node)
	if err != nil {
		return nil, err
	}
	f.mu.RLock()
	sigs := append([]signature(nil), c.sigs[node]...)
	f.mu.RUnlock()
	return marshalSignedTransaction(body, sigs), nil
}

// Payload returns the serialized Transaction submitted to node for chunk.
func (f *Frozen) Payload(chunk int, node ledger.AccountID) ([]byte, error) {
	signed, err := f.SignedBytes(chunk, node)
	if err != nil {
		return nil, err
	}
	return ledger.AppendBytes(nil, fieldSignedTransactionBytes, signed), nil
}

// Hash is the SHA-384 of the signed transaction, the value nodes use to
// identify a submission.
func (f *Frozen) Hash(chunk int, node ledger.AccountID) ([]byte, error) {
	signed, err := f.SignedBytes(chunk, node)
	if err != nil {
		return nil, err
	}
	sum := sha512.Sum384(signed)
	return sum[:], nil
}
