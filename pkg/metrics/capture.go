package metrics

import (
	"context"
	"sync"
)

// Call is the outcome of one attempt against one node.
type Call struct {
	Node       string `json:"node"`
	Address    string `json:"address"`
	Attempt    int    `json:"attempt"`
	Outcome    string `json:"outcome"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// -------- Lightweight hooks  -------------------------

var (
	attemptMu   sync.RWMutex
	attemptHook = make(map[string]func(Call))
)

// RegisterAttemptHook registers a callback receiving every attempt of an
// execution. A nil fn removes the hook.
func RegisterAttemptHook(executionID string, fn func(Call)) {
	attemptMu.Lock()
	defer attemptMu.Unlock()
	if fn == nil {
		delete(attemptHook, executionID)
		return
	}
	attemptHook[executionID] = fn
}

// UnregisterAttemptHook removes the attempt callback of an execution.
func UnregisterAttemptHook(executionID string) { RegisterAttemptHook(executionID, nil) }

// RecordAttempt invokes the attempt callback of the execution, if any.
func RecordAttempt(executionID string, c Call) {
	attemptMu.RLock()
	fn := attemptHook[executionID]
	attemptMu.RUnlock()
	if fn != nil {
		fn(c)
	}
}

// -------- Minimal in-process collector --------------------------

type session struct {
	CallsByNode map[string][]Call
	Order       []string
}

var sessions = struct {
	sync.Mutex
	m map[string]*session
}{m: map[string]*session{}}

// StartCapture collects the attempts of an execution until StopCapture.
func StartCapture(executionID string) {
	RegisterAttemptHook(executionID, func(c Call) {
		sessions.Lock()
		defer sessions.Unlock()
		s := sessions.m[executionID]
		if s == nil {
			s = &session{CallsByNode: map[string][]Call{}}
			sessions.m[executionID] = s
		}
		if _, seen := s.CallsByNode[c.Node]; !seen {
			s.Order = append(s.Order, c.Node)
		}
		s.CallsByNode[c.Node] = append(s.CallsByNode[c.Node], c)
	})
}

// StopCapture stops collecting and returns the execution summary. The
// collected data is released.
func StopCapture(executionID string) map[string]any {
	UnregisterAttemptHook(executionID)
	sessions.Lock()
	s := sessions.m[executionID]
	delete(sessions.m, executionID)
	sessions.Unlock()
	return buildSummary(s)
}

func buildSummary(s *session) map[string]any {
	if s == nil {
		return map[string]any{
			"attempts":         0,
			"nodes":            []string{},
			"success_rate_pct": float64(0),
			"calls_by_node":    map[string][]Call{},
		}
	}
	total, ok := 0, 0
	for _, calls := range s.CallsByNode {
		for _, c := range calls {
			total++
			if c.Success {
				ok++
			}
		}
	}
	var rate float64
	if total > 0 {
		rate = float64(ok) / float64(total) * 100.0
	}
	return map[string]any{
		"attempts":         total,
		"nodes":            s.Order,
		"success_rate_pct": rate,
		"calls_by_node":    s.CallsByNode,
	}
}

// -------- Context helpers (dedicated to metrics tagging) --------------------

type ctxKey string

var executionIDKey ctxKey = "metrics-execution-id"

// WithExecutionID returns a child context tagged with the execution id.
func WithExecutionID(ctx context.Context, executionID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, executionIDKey, executionID)
}

// ExecutionIDFromContext extracts the execution id (or "").
func ExecutionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(executionIDKey).(string); ok {
		return v
	}
	return ""
}
