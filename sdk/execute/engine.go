// Package execute runs requests against the network: it selects nodes,
// sends the per-node payload, classifies the answer, backs off failing nodes
// and returns exactly one result or one terminal error.
package execute

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/ledgerlink/ledger-sdk/pkg/errors"
	"github.com/ledgerlink/ledger-sdk/pkg/logtrace"
	"github.com/ledgerlink/ledger-sdk/pkg/metrics"
	"github.com/ledgerlink/ledger-sdk/pkg/task"
	"github.com/ledgerlink/ledger-sdk/sdk/channel"
	"github.com/ledgerlink/ledger-sdk/sdk/event"
	"github.com/ledgerlink/ledger-sdk/sdk/ledger"
	"github.com/ledgerlink/ledger-sdk/sdk/log"
	"github.com/ledgerlink/ledger-sdk/sdk/network"
	"github.com/ledgerlink/ledger-sdk/sdk/transaction"
)

// Result is the successful answer of an execution.
type Result struct {
	ExecutionID string
	Response    []byte
	Node        ledger.AccountID
	Status      ledger.Status
	// Attempts counts every send, including the successful one.
	Attempts int
	// TransactionID and Hash are set for transaction requests.
	TransactionID ledger.TransactionID
	Hash          []byte
}

type Option func(*Engine)

func WithLogger(l log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithMetrics(r *metrics.Recorder) Option { return func(e *Engine) { e.metrics = r } }

// WithPublisher emits execution and attempt events on p.
func WithPublisher(p event.Publisher) Option { return func(e *Engine) { e.events = p } }

// WithTracker lists every execution on tr while it runs.
func WithTracker(tr task.Tracker) Option { return func(e *Engine) { e.tracker = tr } }

// WithClock overrides the clock used for deadlines and backoff sleeps. It
// defaults to the network's clock.
func WithClock(c clock.Clock) Option { return func(e *Engine) { e.clock = c } }

// Engine executes requests. It is safe for concurrent use; executions share
// only the network's node health.
type Engine struct {
	network   *network.Network
	transport Transport
	logger    log.Logger
	metrics   *metrics.Recorder
	events    event.Publisher
	tracker   task.Tracker
	clock     clock.Clock

	mu  sync.RWMutex
	cfg Config
}

func NewEngine(nw *network.Network, transport Transport, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		network:   nw,
		transport: transport,
		logger:    log.NewNoopLogger(),
		cfg:       cfg.withDefaults(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.clock == nil {
		e.clock = nw.Clock()
	}
	return e
}

func (e *Engine) Config() Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// SetConfig applies to executions started afterwards.
func (e *Engine) SetConfig(cfg Config) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cfg = cfg.withDefaults()
}

// candidates returns the nodes one execution may contact, never more than
// the network's fan-out cap.
func (e *Engine) candidates(req Request, cfg Config) []ledger.AccountID {
	count := e.network.FanOutCap()
	if cfg.MaxNodesPerRequest > 0 && cfg.MaxNodesPerRequest < count {
		count = cfg.MaxNodesPerRequest
	}
	return e.network.SelectCandidates(count, req.Allows)
}

func (e *Engine) target(id ledger.AccountID) (channel.Target, bool) {
	node, ok := e.network.Node(id)
	if !ok || node.Address() == "" {
		return channel.Target{}, false
	}
	addr := node.Address()
	return channel.Target{
		Address:  addr,
		CertHash: node.CertHash,
		Secure:   e.network.IsSecure(addr),
	}, true
}

// Execute runs req until it succeeds, fails fatally, runs out of attempts or
// the request timeout elapses. Cancelling ctx aborts the in-flight call and
// any pending backoff sleep.
func (e *Engine) Execute(ctx context.Context, req Request) (*Result, error) {
	if req == nil {
		return nil, errors.New("request is nil")
	}
	cfg := e.Config()

	execID := uuid.NewString()
	ctx = logtrace.CtxWithCorrelationID(ctx, execID)
	ctx = metrics.WithExecutionID(ctx, execID)
	h, err := e.track(ctx, req, execID, cfg)
	if err != nil {
		return nil, err
	}
	defer h.End(ctx)
	metrics.StartCapture(execID)

	start := e.clock.Now()
	res, err := e.run(ctx, execID, req, cfg)
	summary := metrics.StopCapture(execID)

	result := "success"
	if err != nil {
		result = "failure"
	}
	e.metrics.ObserveExecution(req.Kind(), result, e.clock.Since(start))

	data := map[string]interface{}{
		string(event.KeySummary):    summary,
		string(event.KeyDurationMS): e.clock.Since(start).Milliseconds(),
	}
	if err != nil {
		data[string(event.KeyError)] = err.Error()
		event.Emit(e.events, event.ExecutionFailed, execID, req.Kind(), data)
		e.logger.Warn(ctx, "Execution failed", "kind", req.Kind(), "method", req.Method(), "error", err)
		return nil, err
	}
	data[string(event.KeyNode)] = res.Node.String()
	data[string(event.KeyAttempts)] = res.Attempts
	event.Emit(e.events, event.ExecutionCompleted, execID, req.Kind(), data)
	e.logger.Debug(ctx, "Execution succeeded", "kind", req.Kind(), "node", res.Node.String(), "attempts", res.Attempts)
	return res, nil
}

// track lists the execution on the tracker. A transaction chunk is keyed by
// its transaction id and may only be in flight once.
func (e *Engine) track(ctx context.Context, req Request, execID string, cfg Config) (*task.Handle, error) {
	watchdog := cfg.RequestTimeout + cfg.GrpcDeadline
	tr, ok := req.(*TransactionRequest)
	if !ok {
		return task.StartWith(ctx, e.tracker, e.clock, req.Kind(), execID, watchdog), nil
	}
	txID := tr.TransactionID().String()
	h, err := task.StartUniqueWith(ctx, e.tracker, e.clock, req.Kind(), txID, watchdog)
	if err != nil {
		return nil, errors.Errorf("transaction %s: %w", txID, err)
	}
	return h, nil
}

func (e *Engine) run(ctx context.Context, execID string, req Request, cfg Config) (*Result, error) {
	parent := ctx
	ctx, cancel := e.clock.WithTimeout(ctx, cfg.RequestTimeout)
	defer cancel()
	overall, _ := ctx.Deadline()

	candidates := e.candidates(req, cfg)
	if len(candidates) == 0 {
		return nil, errors.Wrap(ErrNoEligibleNodes, req.Service()+"/"+req.Method())
	}

	// Payloads are built once so every retry sends identical bytes.
	payloads := make(map[ledger.AccountID][]byte, len(candidates))
	for _, id := range candidates {
		p, err := req.Payload(id)
		if err != nil {
			return nil, errors.Wrap(err, "build payload for node "+id.String())
		}
		payloads[id] = p
	}

	names := make([]string, len(candidates))
	for i, id := range candidates {
		names[i] = id.String()
	}
	event.Emit(e.events, event.ExecutionStarted, execID, req.Kind(), map[string]interface{}{
		string(event.KeyCandidates): names,
	})
	e.logger.Debug(ctx, "Execution started", "kind", req.Kind(), "method", req.Method(), "candidates", names)

	lastErrors := make(map[ledger.AccountID]error)
	interrupted := func(attempts int) error {
		if err := parent.Err(); err != nil {
			return errors.Errorf("execution cancelled after %d attempts: %w", attempts, err)
		}
		return &TimeoutError{Attempts: attempts, LastErrors: lastErrors}
	}

	next := 0
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, interrupted(attempt - 1)
		}
		if len(candidates) == 0 {
			return nil, &MaxAttemptsExceededError{Attempts: attempt - 1, LastErrors: lastErrors}
		}

		next %= len(candidates)
		id := candidates[next]
		next++

		target, ok := e.target(id)
		if !ok {
			// removed from the topology since selection
			lastErrors[id] = &ConnectivityError{Node: id, Err: errors.New("node no longer registered")}
			candidates = remove(candidates, id)
			next--
			continue
		}

		deadline := e.clock.Now().Add(cfg.GrpcDeadline)
		if deadline.After(overall) {
			deadline = overall
		}

		e.emitAttempt(event.AttemptStarted, execID, req, id, target.Address, attempt, nil)
		sent := e.clock.Now()
		resp, err := e.transport.Invoke(ctx, target, req.Service(), req.Method(), payloads[id], deadline)
		elapsed := e.clock.Since(sent)

		if err != nil {
			if ctx.Err() != nil {
				e.observe(execID, id, target.Address, attempt, "cancelled", err, elapsed)
				return nil, interrupted(attempt)
			}
			var te *channel.TransportError
			if !errors.As(err, &te) {
				te = &channel.TransportError{Kind: channel.KindUnknown, Address: target.Address, Err: err}
			}
			cerr := &ConnectivityError{Node: id, Err: te}
			lastErrors[id] = cerr

			if te.BadCertificate {
				e.observe(execID, id, target.Address, attempt, "bad_certificate", err, elapsed)
				e.network.MarkBadCertificate(id)
				event.Emit(e.events, event.NodeBadCertificate, execID, req.Kind(), map[string]interface{}{
					string(event.KeyNode):    id.String(),
					string(event.KeyAddress): target.Address,
				})
				candidates = remove(candidates, id)
				next--
				continue
			}
			if !te.Retryable() {
				e.observe(execID, id, target.Address, attempt, OutcomeFatal.String(), err, elapsed)
				return nil, cerr
			}

			e.observe(execID, id, target.Address, attempt, OutcomeRetryNode.String(), err, elapsed)
			delay := e.network.RecordFailure(id, network.FailureConnectivity)
			e.emitAttempt(event.AttemptFailed, execID, req, id, target.Address, attempt, cerr)
			if attempt < cfg.MaxAttempts {
				if err := e.backoff(ctx, execID, req, id, delay); err != nil {
					return nil, interrupted(attempt)
				}
			}
			continue
		}

		status, outcome, cerr := req.Classify(resp)
		switch {
		case cerr != nil:
			e.observe(execID, id, target.Address, attempt, OutcomeFatal.String(), cerr, elapsed)
			return nil, &FatalStatusError{Node: id, Status: status, Response: resp, Err: cerr}

		case outcome == OutcomeSuccess:
			e.observe(execID, id, target.Address, attempt, outcome.String(), nil, elapsed)
			e.network.RecordSuccess(id)
			e.emitAttempt(event.AttemptSucceeded, execID, req, id, target.Address, attempt, nil)
			res := &Result{
				ExecutionID: execID,
				Response:    resp,
				Node:        id,
				Status:      status,
				Attempts:    attempt,
			}
			if tr, ok := req.(*TransactionRequest); ok {
				res.TransactionID = tr.TransactionID()
				res.Hash, _ = tr.Frozen.Hash(tr.Chunk, id)
			}
			return res, nil

		case outcome == OutcomeRetryNode || outcome == OutcomeRetryStatus:
			kind := network.FailureStatus
			var rerr error = &RetryableStatusError{Node: id, Status: status}
			if outcome == OutcomeRetryNode {
				kind = network.FailureConnectivity
				rerr = &ConnectivityError{Node: id, Err: errors.Errorf("node answered %s", status)}
			}
			lastErrors[id] = rerr
			e.observe(execID, id, target.Address, attempt, outcome.String(), rerr, elapsed)
			delay := e.network.RecordFailure(id, kind)
			e.emitAttempt(event.AttemptFailed, execID, req, id, target.Address, attempt, rerr)
			if attempt < cfg.MaxAttempts {
				if err := e.backoff(ctx, execID, req, id, delay); err != nil {
					return nil, interrupted(attempt)
				}
			}

		default:
			// the node is healthy, the request is not
			e.observe(execID, id, target.Address, attempt, outcome.String(), nil, elapsed)
			e.network.RecordSuccess(id)
			return nil, &FatalStatusError{Node: id, Status: status, Response: resp}
		}
	}

	return nil, &MaxAttemptsExceededError{Attempts: cfg.MaxAttempts, LastErrors: lastErrors}
}

// backoff sleeps for delay unless ctx ends first.
func (e *Engine) backoff(ctx context.Context, execID string, req Request, id ledger.AccountID, delay time.Duration) error {
	event.Emit(e.events, event.NodeBackoff, execID, req.Kind(), map[string]interface{}{
		string(event.KeyNode):  id.String(),
		string(event.KeyDelay): delay.String(),
	})
	if delay <= 0 {
		return ctx.Err()
	}
	t := e.clock.Timer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (e *Engine) observe(execID string, id ledger.AccountID, address string, attempt int, outcome string, err error, elapsed time.Duration) {
	e.metrics.ObserveAttempt(id.String(), outcome)
	c := metrics.Call{
		Node:       id.String(),
		Address:    address,
		Attempt:    attempt,
		Outcome:    outcome,
		Success:    outcome == OutcomeSuccess.String(),
		DurationMS: elapsed.Milliseconds(),
	}
	if err != nil {
		c.Error = err.Error()
	}
	metrics.RecordAttempt(execID, c)
}

func (e *Engine) emitAttempt(t event.EventType, execID string, req Request, id ledger.AccountID, address string, attempt int, err error) {
	data := map[string]interface{}{
		string(event.KeyNode):    id.String(),
		string(event.KeyAddress): address,
		string(event.KeyAttempt): attempt,
	}
	if err != nil {
		data[string(event.KeyError)] = err.Error()
	}
	event.Emit(e.events, t, execID, req.Kind(), data)
}

func remove(ids []ledger.AccountID, id ledger.AccountID) []ledger.AccountID {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// ExecuteTransaction submits every chunk of f in order and stops at the
// first failure. One result per chunk is returned on success.
func (e *Engine) ExecuteTransaction(ctx context.Context, f *transaction.Frozen) ([]*Result, error) {
	if f == nil {
		return nil, errors.New("frozen transaction is nil")
	}
	results := make([]*Result, 0, f.ChunkCount())
	for i := 0; i < f.ChunkCount(); i++ {
		req, err := NewTransactionRequest(f, i)
		if err != nil {
			return nil, err
		}
		res, err := e.Execute(ctx, req)
		if err != nil {
			if f.ChunkCount() > 1 {
				return nil, errors.Errorf("chunk %d of %d: %w", i+1, f.ChunkCount(), err)
			}
			return nil, err
		}
		results = append(results, res)
		if f.ChunkCount() > 1 {
			event.Emit(e.events, event.ChunkCompleted, res.ExecutionID, req.Kind(), map[string]interface{}{
				string(event.KeyTransactionID): res.TransactionID.String(),
				string(event.KeyChunkIndex):    i,
				string(event.KeyChunkTotal):    f.ChunkCount(),
			})
		}
	}
	return results, nil
}
