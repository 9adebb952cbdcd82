package channel

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ledgerlink/ledger-sdk/pkg/errors"
)

// TransportErrorKind classifies a failed call.
type TransportErrorKind int

const (
	// KindUnknown is any failure not covered below. It is not retried.
	KindUnknown TransportErrorKind = iota
	// KindUnavailable means the node could not be reached or dropped the call.
	KindUnavailable
	// KindDeadlineExceeded means the per-call deadline passed.
	KindDeadlineExceeded
	// KindCancelled means the call was cancelled, by the caller's context
	// or by the node. Callers check their own context first.
	KindCancelled
)

func (k TransportErrorKind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	case KindDeadlineExceeded:
		return "deadline_exceeded"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// TransportError is returned by Send for every failed call.
type TransportError struct {
	Kind    TransportErrorKind
	Address string
	// BadCertificate is set when the node's certificate did not match its pin.
	BadCertificate bool
	Err            error
}

func (e *TransportError) Error() string {
	if e.BadCertificate {
		return fmt.Sprintf("transport %s: certificate rejected: %v", e.Address, e.Err)
	}
	return fmt.Sprintf("transport %s: %s: %v", e.Address, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Retryable reports whether another attempt, possibly on another node,
// may succeed.
func (e *TransportError) Retryable() bool {
	if e.BadCertificate {
		return false
	}
	switch e.Kind {
	case KindUnavailable, KindDeadlineExceeded, KindCancelled:
		return true
	}
	return false
}

// ErrCertificateMismatch is wrapped by TransportError when a pin check fails.
var ErrCertificateMismatch = errors.New("peer certificate does not match pinned hash")

// classify converts a gRPC call error into a TransportError.
func classify(ctx context.Context, address string, err error) *TransportError {
	te := &TransportError{Kind: KindUnknown, Address: address, Err: err}
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			te.Kind = KindDeadlineExceeded
		} else {
			te.Kind = KindCancelled
		}
		return te
	}
	st, ok := status.FromError(err)
	if !ok {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			te.Kind = KindDeadlineExceeded
		case errors.Is(err, context.Canceled):
			te.Kind = KindCancelled
		}
		return te
	}
	switch st.Code() {
	case codes.Unavailable, codes.ResourceExhausted:
		te.Kind = KindUnavailable
	case codes.DeadlineExceeded:
		te.Kind = KindDeadlineExceeded
	case codes.Canceled:
		te.Kind = KindCancelled
	case codes.Internal:
		// proxies reset streams under load
		if strings.Contains(strings.ToLower(st.Message()), "rst_stream") {
			te.Kind = KindUnavailable
		}
	}
	return te
}
