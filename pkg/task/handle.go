package task

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/ledgerlink/ledger-sdk/pkg/errors"
	"github.com/ledgerlink/ledger-sdk/pkg/logtrace"
)

var ErrAlreadyRunning = errors.New("execution already running")

// Handle pairs Start with End for one execution. When started with a
// watchdog, the execution is ended automatically once the timeout passes so
// a lost End never leaves it listed forever.
type Handle struct {
	tr   Tracker
	kind string
	id   string
	stop chan struct{}
	once sync.Once
}

// StartWith tracks id under kind. A nil tracker yields a no-op handle.
func StartWith(ctx context.Context, tr Tracker, clk clock.Clock, kind, id string, timeout time.Duration) *Handle {
	if tr == nil || kind == "" || id == "" {
		return &Handle{}
	}
	tr.Start(kind, id)
	return watch(ctx, tr, clk, kind, id, timeout)
}

// StartUniqueWith is StartWith but fails with ErrAlreadyRunning when id is
// already tracked. Trackers without TryStart cannot enforce uniqueness.
func StartUniqueWith(ctx context.Context, tr Tracker, clk clock.Clock, kind, id string, timeout time.Duration) (*Handle, error) {
	if tr == nil || kind == "" || id == "" {
		return &Handle{}, nil
	}
	if ts, ok := tr.(interface{ TryStart(kind, id string) bool }); ok {
		if !ts.TryStart(kind, id) {
			return nil, ErrAlreadyRunning
		}
	} else {
		tr.Start(kind, id)
	}
	return watch(ctx, tr, clk, kind, id, timeout), nil
}

func watch(ctx context.Context, tr Tracker, clk clock.Clock, kind, id string, timeout time.Duration) *Handle {
	logtrace.Debug(ctx, "execution tracked", logtrace.Fields{"kind": kind, "execution_id": id})
	h := &Handle{tr: tr, kind: kind, id: id, stop: make(chan struct{})}
	if timeout > 0 {
		if clk == nil {
			clk = clock.New()
		}
		timer := clk.Timer(timeout)
		go func() {
			defer timer.Stop()
			select {
			case <-timer.C:
				h.end(ctx, true)
			case <-h.stop:
			}
		}()
	}
	return h
}

// End stops tracking. Safe to call more than once and on a nil handle.
func (h *Handle) End(ctx context.Context) {
	h.end(ctx, false)
}

func (h *Handle) end(ctx context.Context, expired bool) {
	if h == nil || h.kind == "" || h.id == "" {
		return
	}
	h.once.Do(func() {
		close(h.stop)
		h.tr.End(h.kind, h.id)
		if expired {
			logtrace.Warn(ctx, "execution watchdog expired", logtrace.Fields{"kind": h.kind, "execution_id": h.id})
		}
	})
}
