package execute

import (
	"github.com/ledgerlink/ledger-sdk/pkg/errors"
	"github.com/ledgerlink/ledger-sdk/sdk/ledger"
	"github.com/ledgerlink/ledger-sdk/sdk/transaction"
)

// Outcome is the classification of one node response.
type Outcome int

const (
	// OutcomeSuccess ends the execution with a result.
	OutcomeSuccess Outcome = iota
	// OutcomeRetryNode backs the node off and tries the next one.
	OutcomeRetryNode
	// OutcomeRetryStatus is a transient ledger status; handled like OutcomeRetryNode.
	OutcomeRetryStatus
	// OutcomeFatal ends the execution with the node's answer.
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryNode:
		return "retry_node"
	case OutcomeRetryStatus:
		return "retry_status"
	default:
		return "fatal"
	}
}

// Classifier maps a raw response to its status and outcome. An error means
// the response could not be understood and is treated as fatal.
type Classifier func(resp []byte) (ledger.Status, Outcome, error)

// Request is one logical request the engine can execute. The set of
// implementations is closed: TransactionRequest and QueryRequest.
type Request interface {
	// Kind names the request for logs and metrics.
	Kind() string
	Service() string
	Method() string
	// Allows reports whether node may serve the request.
	Allows(node ledger.AccountID) bool
	// Payload returns the bytes to send to node. It is fixed before the
	// first attempt and never re-derived.
	Payload(node ledger.AccountID) ([]byte, error)
	Classify(resp []byte) (ledger.Status, Outcome, error)

	isRequest()
}

// ClassifyStatus maps a precheck status to an outcome.
func ClassifyStatus(s ledger.Status) Outcome {
	switch {
	case s.IsSuccess():
		return OutcomeSuccess
	case s.IsRetryable():
		return OutcomeRetryStatus
	default:
		return OutcomeFatal
	}
}

// TransactionRequest submits one chunk of a frozen, signed transaction.
type TransactionRequest struct {
	Frozen *transaction.Frozen
	Chunk  int
}

// NewTransactionRequest validates chunk against f.
func NewTransactionRequest(f *transaction.Frozen, chunk int) (*TransactionRequest, error) {
	if f == nil {
		return nil, errors.New("frozen transaction is nil")
	}
	if chunk < 0 || chunk >= f.ChunkCount() {
		return nil, errors.Errorf("chunk %d out of range [0,%d)", chunk, f.ChunkCount())
	}
	return &TransactionRequest{Frozen: f, Chunk: chunk}, nil
}

func (*TransactionRequest) isRequest()        {}
func (*TransactionRequest) Kind() string      { return "transaction" }
func (r *TransactionRequest) Service() string { return r.Frozen.Service() }
func (r *TransactionRequest) Method() string  { return r.Frozen.Method() }

// Allows restricts selection to the freeze set.
func (r *TransactionRequest) Allows(node ledger.AccountID) bool { return r.Frozen.HasNode(node) }

func (r *TransactionRequest) Payload(node ledger.AccountID) ([]byte, error) {
	return r.Frozen.Payload(r.Chunk, node)
}

func (r *TransactionRequest) Classify(resp []byte) (ledger.Status, Outcome, error) {
	s, err := ledger.PrecheckFromTransactionResponse(resp)
	if err != nil {
		return ledger.StatusUnknown, OutcomeFatal, err
	}
	return s, ClassifyStatus(s), nil
}

// TransactionID is the id of the chunk being submitted.
func (r *TransactionRequest) TransactionID() ledger.TransactionID {
	id, err := r.Frozen.ChunkTransactionID(r.Chunk)
	if err != nil {
		return r.Frozen.TransactionID()
	}
	return id
}

// QueryRequest is a read. The same bytes go to whichever node is selected.
type QueryRequest struct {
	ServiceName string
	MethodName  string
	Body        []byte
	// Nodes restricts selection when non-empty.
	Nodes []ledger.AccountID
	// Classifier overrides the default precheck-header classification.
	Classifier Classifier
}

func (*QueryRequest) isRequest()        {}
func (*QueryRequest) Kind() string      { return "query" }
func (q *QueryRequest) Service() string { return q.ServiceName }
func (q *QueryRequest) Method() string  { return q.MethodName }

func (q *QueryRequest) Allows(node ledger.AccountID) bool {
	if len(q.Nodes) == 0 {
		return true
	}
	for _, n := range q.Nodes {
		if n == node {
			return true
		}
	}
	return false
}

func (q *QueryRequest) Payload(ledger.AccountID) ([]byte, error) {
	return q.Body, nil
}

func (q *QueryRequest) Classify(resp []byte) (ledger.Status, Outcome, error) {
	if q.Classifier != nil {
		return q.Classifier(resp)
	}
	s, err := ledger.PrecheckFromQueryResponse(resp)
	if err != nil {
		return ledger.StatusUnknown, OutcomeFatal, err
	}
	return s, ClassifyStatus(s), nil
}
