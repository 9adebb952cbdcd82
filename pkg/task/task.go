// Package task tracks executions that are currently in flight, grouped by
// request kind. Only live executions are kept; nothing is persisted.
package task

import "sync"

// Tracker records live executions per kind. Implementations must be safe
// for concurrent use and ignore empty arguments.
type Tracker interface {
	Start(kind, id string)
	End(kind, id string)
	Snapshot() map[string][]string
}

// InMemoryTracker is the default Tracker.
type InMemoryTracker struct {
	mu   sync.RWMutex
	data map[string]map[string]struct{}
}

func New() *InMemoryTracker {
	return &InMemoryTracker{data: make(map[string]map[string]struct{})}
}

// TryStart marks id as running under kind and reports whether it was not
// already running.
func (t *InMemoryTracker) TryStart(kind, id string) bool {
	if kind == "" || id == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	m, ok := t.data[kind]
	if !ok {
		m = make(map[string]struct{})
		t.data[kind] = m
	}
	if _, exists := m[id]; exists {
		return false
	}
	m[id] = struct{}{}
	return true
}

func (t *InMemoryTracker) Start(kind, id string) {
	t.TryStart(kind, id)
}

func (t *InMemoryTracker) End(kind, id string) {
	if kind == "" || id == "" {
		return
	}
	t.mu.Lock()
	if m, ok := t.data[kind]; ok {
		delete(m, id)
		if len(m) == 0 {
			delete(t.data, kind)
		}
	}
	t.mu.Unlock()
}

// Count returns the number of live executions across all kinds.
func (t *InMemoryTracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	n := 0
	for _, m := range t.data {
		n += len(m)
	}
	return n
}

// Snapshot returns a copy of the live executions per kind.
func (t *InMemoryTracker) Snapshot() map[string][]string {
	out := make(map[string][]string)
	t.mu.RLock()
	for kind, m := range t.data {
		ids := make([]string, 0, len(m))
		for id := range m {
			ids = append(ids, id)
		}
		out[kind] = ids
	}
	t.mu.RUnlock()
	return out
}
