package network

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"

	"github.com/ledgerlink/ledger-sdk/sdk/ledger"
)

// FailureKind describes why an attempt against a node failed.
type FailureKind int

const (
	// FailureConnectivity is a transport level failure (unreachable, deadline).
	FailureConnectivity FailureKind = iota
	// FailureStatus is a retryable status answered by the node.
	FailureStatus
)

func (k FailureKind) String() string {
	if k == FailureStatus {
		return "status"
	}
	return "connectivity"
}

// Node is one server of the network together with its health state. The
// identity fields never change; health is guarded by mu.
type Node struct {
	AccountID ledger.AccountID
	Addresses []string
	CertHash  []byte

	order int
	clock clock.Clock

	mu         sync.Mutex
	minBackoff time.Duration
	maxBackoff time.Duration
	backoff    *backoff.ExponentialBackOff
	delay      time.Duration
	readmitAt  time.Time
	lastUsed   time.Time
	useCount   int64
	badCert    bool
}

// NodeHealth is a point-in-time copy of a node's health state.
type NodeHealth struct {
	Delay          time.Duration
	ReadmitAt      time.Time
	LastUsed       time.Time
	UseCount       int64
	BadCertificate bool
}

// Healthy reports whether the node was eligible at now.
func (h NodeHealth) Healthy(now time.Time) bool {
	return !h.BadCertificate && !h.ReadmitAt.After(now)
}

func newNode(spec NodeSpec, order int, clk clock.Clock, minBackoff, maxBackoff time.Duration) *Node {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     2 * minBackoff,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         maxBackoff,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               clk,
	}
	b.Reset()

	return &Node{
		AccountID:  spec.AccountID,
		Addresses:  append([]string(nil), spec.Addresses...),
		CertHash:   append([]byte(nil), spec.CertHash...),
		order:      order,
		clock:      clk,
		minBackoff: minBackoff,
		maxBackoff: maxBackoff,
		backoff:    b,
		delay:      minBackoff,
	}
}

// Address returns the node's primary address.
func (n *Node) Address() string {
	if len(n.Addresses) == 0 {
		return ""
	}
	return n.Addresses[0]
}

// Health returns a snapshot of the node's health.
func (n *Node) Health() NodeHealth {
	n.mu.Lock()
	defer n.mu.Unlock()
	return NodeHealth{
		Delay:          n.delay,
		ReadmitAt:      n.readmitAt,
		LastUsed:       n.lastUsed,
		UseCount:       n.useCount,
		BadCertificate: n.badCert,
	}
}

// Delay is how long a caller should wait after the node's last failure.
func (n *Node) Delay() time.Duration {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.delay
}

func (n *Node) recordSuccess() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.backoff.Reset()
	n.delay = n.minBackoff
	n.readmitAt = time.Time{}
	n.lastUsed = n.clock.Now()
	n.useCount++
}

func (n *Node) recordFailure() time.Duration {
	n.mu.Lock()
	defer n.mu.Unlock()
	next := n.backoff.NextBackOff()
	if next == backoff.Stop || next > n.maxBackoff {
		next = n.maxBackoff
	}
	now := n.clock.Now()
	n.delay = next
	n.readmitAt = now.Add(next)
	n.lastUsed = now
	n.useCount++
	return next
}

func (n *Node) markBadCertificate() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.badCert = true
}
