// Package guard provides per-process deduplication of in-flight operations.
//
// A caller claims an operation id before issuing a side-effecting action and
// releases it on completion. A second claim for the same id fails until the
// first is released or auto-expired, which stops duplicate accepts and the
// like from a flaky network's retries. Ids are caller-chosen, so callers
// combine action name and entity id when per-entity granularity matters.
package guard

import (
	"sync"
	"time"
)

// DefaultTimeout releases an operation whose End was lost.
const DefaultTimeout = 10 * time.Second

type Guard struct {
	mu        sync.Mutex
	inflight  map[string]*time.Timer
	timeout   time.Duration
	onTimeout func(id string)
}

// New builds a Guard. onTimeout may be nil; it fires at most once per expired
// operation, outside the guard's lock.
func New(timeout time.Duration, onTimeout func(id string)) *Guard {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Guard{
		inflight:  make(map[string]*time.Timer),
		timeout:   timeout,
		onTimeout: onTimeout,
	}
}

// Start claims the operation id. It returns false when the id is already in
// flight; the caller must then abort the attempted action.
func (g *Guard) Start(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.inflight[id]; ok {
		return false
	}
	g.inflight[id] = time.AfterFunc(g.timeout, func() { g.expire(id) })
	return true
}

// End releases the operation id. Idempotent: releasing an unknown or already
// expired id is a no-op.
func (g *Guard) End(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if t, ok := g.inflight[id]; ok {
		t.Stop()
		delete(g.inflight, id)
	}
}

// InFlight reports whether the id is currently claimed.
func (g *Guard) InFlight(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.inflight[id]
	return ok
}

func (g *Guard) expire(id string) {
	g.mu.Lock()
	_, ok := g.inflight[id]
	if ok {
		delete(g.inflight, id)
	}
	g.mu.Unlock()
	// the timer may fire concurrently with End; only the path that actually
	// removed the entry reports the timeout
	if ok && g.onTimeout != nil {
		g.onTimeout(id)
	}
}
