package execute

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ledgerlink/ledger-sdk/pkg/errors"
	"github.com/ledgerlink/ledger-sdk/sdk/ledger"
)

// ErrNoEligibleNodes is returned when no registered node may serve a request.
var ErrNoEligibleNodes = errors.New("no eligible nodes")

// ConnectivityError is a transport failure against one node. Retryable kinds
// are retried; anything else is returned as is.
type ConnectivityError struct {
	Node ledger.AccountID
	Err  error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("node %s: connectivity: %v", e.Node, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// RetryableStatusError is a transient status returned by a node.
type RetryableStatusError struct {
	Node   ledger.AccountID
	Status ledger.Status
}

func (e *RetryableStatusError) Error() string {
	return fmt.Sprintf("node %s: retryable status %s", e.Node, e.Status)
}

// FatalStatusError is a rejection returned to the caller unchanged.
type FatalStatusError struct {
	Node     ledger.AccountID
	Status   ledger.Status
	Response []byte
	// Err is set when the response could not be decoded.
	Err error
}

func (e *FatalStatusError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("node %s: undecodable response: %v", e.Node, e.Err)
	}
	return fmt.Sprintf("node %s: status %s", e.Node, e.Status)
}

func (e *FatalStatusError) Unwrap() error { return e.Err }

// MaxAttemptsExceededError is returned when every attempt ended in a
// retryable failure.
type MaxAttemptsExceededError struct {
	Attempts int
	// LastErrors holds the most recent error seen per node tried.
	LastErrors map[ledger.AccountID]error
}

func (e *MaxAttemptsExceededError) Error() string {
	return fmt.Sprintf("max attempts (%d) exceeded: %s", e.Attempts, describe(e.LastErrors))
}

// TimeoutError is returned when the request timeout elapsed before success.
type TimeoutError struct {
	Attempts   int
	LastErrors map[ledger.AccountID]error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request timed out after %d attempts: %s", e.Attempts, describe(e.LastErrors))
}

func (e *TimeoutError) Unwrap() error { return context.DeadlineExceeded }

func describe(last map[ledger.AccountID]error) string {
	if len(last) == 0 {
		return "no node answered"
	}
	parts := make([]string, 0, len(last))
	for node, err := range last {
		parts = append(parts, node.String()+": "+err.Error())
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}
