// Package network keeps the set of ledger nodes a client may talk to, their
// per-node health and backoff state, and picks candidates for each attempt.
package network

import (
	"bytes"
	"context"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/ledgerlink/ledger-sdk/pkg/errors"
	"github.com/ledgerlink/ledger-sdk/sdk/ledger"
	"github.com/ledgerlink/ledger-sdk/sdk/log"
)

const (
	DefaultMinBackoff = 250 * time.Millisecond
	DefaultMaxBackoff = 8 * time.Second

	PlaintextPort = 50211
	SecurePort    = 50212
)

// NodeSpec describes a node before it is registered.
type NodeSpec struct {
	AccountID ledger.AccountID
	Addresses []string
	CertHash  []byte
}

// Network is the node registry. It is safe for concurrent use.
type Network struct {
	mu         sync.RWMutex
	nodes      map[ledger.AccountID]*Node
	order      []ledger.AccountID
	generation uint64

	ledgerID   ledger.LedgerID
	minBackoff time.Duration
	maxBackoff time.Duration
	securePort int
	clock      clock.Clock
	logger     log.Logger
}

// Option configures a Network.
type Option func(*Network)

func WithMinBackoff(d time.Duration) Option { return func(n *Network) { n.minBackoff = d } }
func WithMaxBackoff(d time.Duration) Option { return func(n *Network) { n.maxBackoff = d } }
func WithClock(c clock.Clock) Option        { return func(n *Network) { n.clock = c } }
func WithLedgerID(id ledger.LedgerID) Option {
	return func(n *Network) { n.ledgerID = id }
}

// WithSecurePort changes the port treated as TLS by IsSecure.
func WithSecurePort(port int) Option { return func(n *Network) { n.securePort = port } }

// WithLogger sets the logger used for topology changes.
func WithLogger(l log.Logger) Option {
	return func(n *Network) {
		if l != nil {
			n.logger = l
		}
	}
}

// New creates an empty registry.
func New(opts ...Option) *Network {
	n := &Network{
		nodes:      map[ledger.AccountID]*Node{},
		minBackoff: DefaultMinBackoff,
		maxBackoff: DefaultMaxBackoff,
		securePort: SecurePort,
		clock:      clock.New(),
		logger:     log.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.maxBackoff < n.minBackoff {
		n.maxBackoff = n.minBackoff
	}
	return n
}

func (n *Network) LedgerID() ledger.LedgerID {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.ledgerID
}

func (n *Network) SetLedgerID(id ledger.LedgerID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ledgerID = id
}

// Clock returns the clock used for health bookkeeping.
func (n *Network) Clock() clock.Clock { return n.clock }

// MinBackoff returns the delay a healthy node starts from.
func (n *Network) MinBackoff() time.Duration { return n.minBackoff }

// MaxBackoff returns the upper bound of a node's delay.
func (n *Network) MaxBackoff() time.Duration { return n.maxBackoff }

// SetNetwork replaces the topology with an address to account map. Several
// addresses may map to the same account. It returns the stale addresses as
// SetNodes does.
func (n *Network) SetNetwork(network map[string]ledger.AccountID) ([]string, error) {
	byAccount := map[ledger.AccountID][]string{}
	for addr, id := range network {
		byAccount[id] = append(byAccount[id], addr)
	}
	specs := make([]NodeSpec, 0, len(byAccount))
	for id, addrs := range byAccount {
		sort.Strings(addrs)
		specs = append(specs, NodeSpec{AccountID: id, Addresses: addrs})
	}
	sort.Slice(specs, func(i, j int) bool { return lessAccount(specs[i].AccountID, specs[j].AccountID) })
	return n.SetNodes(specs)
}

// SetNodes replaces the topology. Every node starts with fresh health state
// and the generation counter is incremented. It returns the addresses whose
// channels are stale: addresses no longer in the network, and addresses whose
// certificate pin changed or was rejected before the replacement.
func (n *Network) SetNodes(specs []NodeSpec) ([]string, error) {
	nodes := make(map[ledger.AccountID]*Node, len(specs))
	order := make([]ledger.AccountID, 0, len(specs))
	for _, spec := range specs {
		if len(spec.Addresses) == 0 {
			return nil, errors.Errorf("node %s has no address", spec.AccountID)
		}
		for _, addr := range spec.Addresses {
			if _, _, err := net.SplitHostPort(addr); err != nil {
				return nil, errors.Wrap(err, "node "+spec.AccountID.String())
			}
		}
		if existing, ok := nodes[spec.AccountID]; ok {
			existing.Addresses = appendUnique(existing.Addresses, spec.Addresses...)
			if len(existing.CertHash) == 0 {
				existing.CertHash = append([]byte(nil), spec.CertHash...)
			}
			continue
		}
		nodes[spec.AccountID] = newNode(spec, len(order), n.clock, n.minBackoff, n.maxBackoff)
		order = append(order, spec.AccountID)
	}

	n.mu.Lock()
	kept := map[string]*Node{}
	for _, node := range nodes {
		for _, a := range node.Addresses {
			kept[a] = node
		}
	}
	var removed []string
	for _, old := range n.nodes {
		rejected := old.Health().BadCertificate
		for _, a := range old.Addresses {
			next, ok := kept[a]
			if !ok || rejected || !bytes.Equal(next.CertHash, old.CertHash) {
				removed = append(removed, a)
			}
		}
	}
	n.nodes = nodes
	n.order = order
	n.generation++
	gen := n.generation
	n.mu.Unlock()

	sort.Strings(removed)
	n.logger.Info(context.Background(), "Network topology replaced",
		"nodes", len(order), "generation", gen, "removedAddresses", len(removed))
	return removed, nil
}

// SetNetworkFromAddressBook replaces the topology with the nodes of book.
// Entries without any endpoint or without an account are skipped.
func (n *Network) SetNetworkFromAddressBook(book *AddressBook) ([]string, error) {
	if book == nil {
		return nil, errors.New("address book is nil")
	}
	specs := make([]NodeSpec, 0, len(book.Nodes))
	for _, entry := range book.Nodes {
		addrs := entry.Addresses()
		if len(addrs) == 0 {
			continue
		}
		id := entry.Node()
		if id.IsZero() {
			n.logger.Warn(context.Background(), "Address book entry has no account", "nodeId", entry.NodeID)
			continue
		}
		specs = append(specs, NodeSpec{AccountID: id, Addresses: addrs, CertHash: entry.CertHash})
	}
	if len(specs) == 0 {
		return nil, errors.New("address book contains no reachable nodes")
	}
	return n.SetNodes(specs)
}

// Generation increases every time the topology is replaced.
func (n *Network) Generation() uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.generation
}

// Len is the number of registered nodes.
func (n *Network) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.order)
}

// FanOutCap is the most distinct nodes a single submission may contact:
// ceil(N/3), and at least one when any node exists.
func (n *Network) FanOutCap() int {
	return fanOutCap(n.Len())
}

func fanOutCap(size int) int {
	if size <= 0 {
		return 0
	}
	return (size + 2) / 3
}

// Node returns the registered node for id.
func (n *Network) Node(id ledger.AccountID) (*Node, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	node, ok := n.nodes[id]
	return node, ok
}

// Nodes returns the registered nodes in topology order.
func (n *Network) Nodes() []*Node {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]*Node, 0, len(n.order))
	for _, id := range n.order {
		out = append(out, n.nodes[id])
	}
	return out
}

// NodeIDs returns the registered account ids in topology order.
func (n *Network) NodeIDs() []ledger.AccountID {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]ledger.AccountID(nil), n.order...)
}

// Addresses returns every registered address.
func (n *Network) Addresses() []string {
	var out []string
	for _, node := range n.Nodes() {
		out = append(out, node.Addresses...)
	}
	return out
}

// Health returns a snapshot of id's health state.
func (n *Network) Health(id ledger.AccountID) (NodeHealth, bool) {
	node, ok := n.Node(id)
	if !ok {
		return NodeHealth{}, false
	}
	return node.Health(), true
}

// RecordSuccess resets id's backoff to the minimum.
func (n *Network) RecordSuccess(id ledger.AccountID) {
	if node, ok := n.Node(id); ok {
		node.recordSuccess()
	}
}

// RecordFailure doubles id's delay (bounded by the maximum backoff) and makes
// the node ineligible for that long. It returns the new delay.
func (n *Network) RecordFailure(id ledger.AccountID, kind FailureKind) time.Duration {
	node, ok := n.Node(id)
	if !ok {
		return n.minBackoff
	}
	d := node.recordFailure()
	n.logger.Debug(context.Background(), "Node marked unhealthy",
		"node", id.String(), "kind", kind.String(), "delay", d)
	return d
}

// MarkBadCertificate excludes id until the topology is next replaced.
func (n *Network) MarkBadCertificate(id ledger.AccountID) {
	if node, ok := n.Node(id); ok {
		node.markBadCertificate()
		n.logger.Warn(context.Background(), "Node certificate rejected", "node", id.String())
	}
}

// SelectCandidates returns up to count node ids for one submission. Nodes
// for which allow returns false, and nodes with a rejected certificate, are
// never returned. Eligible nodes come first ordered by the time they became
// eligible, then least recently used, then topology order. When fewer than
// count are eligible the rest is filled with backed-off nodes whose backoff
// expires soonest.
func (n *Network) SelectCandidates(count int, allow func(ledger.AccountID) bool) []ledger.AccountID {
	if count <= 0 {
		return nil
	}
	now := n.clock.Now()

	type candidate struct {
		id     ledger.AccountID
		order  int
		health NodeHealth
	}
	var eligible, backedOff []candidate
	for _, node := range n.Nodes() {
		if allow != nil && !allow(node.AccountID) {
			continue
		}
		h := node.Health()
		if h.BadCertificate {
			continue
		}
		c := candidate{id: node.AccountID, order: node.order, health: h}
		if h.ReadmitAt.After(now) {
			backedOff = append(backedOff, c)
		} else {
			eligible = append(eligible, c)
		}
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i].health, eligible[j].health
		if !a.ReadmitAt.Equal(b.ReadmitAt) {
			return a.ReadmitAt.Before(b.ReadmitAt)
		}
		if !a.LastUsed.Equal(b.LastUsed) {
			return a.LastUsed.Before(b.LastUsed)
		}
		return eligible[i].order < eligible[j].order
	})
	sort.SliceStable(backedOff, func(i, j int) bool {
		a, b := backedOff[i].health, backedOff[j].health
		if !a.ReadmitAt.Equal(b.ReadmitAt) {
			return a.ReadmitAt.Before(b.ReadmitAt)
		}
		return backedOff[i].order < backedOff[j].order
	})

	out := make([]ledger.AccountID, 0, count)
	for _, c := range eligible {
		if len(out) == count {
			return out
		}
		out = append(out, c.id)
	}
	for _, c := range backedOff {
		if len(out) == count {
			break
		}
		out = append(out, c.id)
	}
	return out
}

// IsSecure reports whether address uses the TLS port.
func (n *Network) IsSecure(address string) bool {
	return IsSecureAddress(address, n.securePort)
}

// IsSecureAddress reports whether address's port equals securePort.
func IsSecureAddress(address string, securePort int) bool {
	_, port, err := net.SplitHostPort(address)
	if err != nil {
		return false
	}
	p, err := strconv.Atoi(port)
	return err == nil && p == securePort
}

func lessAccount(a, b ledger.AccountID) bool {
	if a.Shard != b.Shard {
		return a.Shard < b.Shard
	}
	if a.Realm != b.Realm {
		return a.Realm < b.Realm
	}
	return a.Num < b.Num
}

func appendUnique(dst []string, src ...string) []string {
	for _, s := range src {
		found := false
		for _, d := range dst {
			if d == s {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, s)
		}
	}
	return dst
}
