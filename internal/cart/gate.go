package cart

import (
	"context"
	"sync"
)

// RequestGate lets only the latest of a series of async requests take effect.
// Beginning a request cancels the one in flight.
type RequestGate struct {
	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// Ticket identifies one request issued through a gate.
type Ticket struct {
	seq    uint64
	cancel context.CancelFunc
}

// Release frees the ticket's context. Safe to call more than once.
func (t Ticket) Release() {
	if t.cancel != nil {
		t.cancel()
	}
}

// Begin issues a new ticket and a context for its request.
func (g *RequestGate) Begin(parent context.Context) (context.Context, Ticket) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cancel != nil {
		g.cancel()
	}
	g.seq++
	ctx, cancel := context.WithCancel(parent)
	g.cancel = cancel
	return ctx, Ticket{seq: g.seq, cancel: cancel}
}

// Current reports whether no newer ticket has been issued since t.
func (g *RequestGate) Current(t Ticket) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return t.seq == g.seq
}

// Invalidate makes every outstanding ticket stale.
func (g *RequestGate) Invalidate() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.cancel != nil {
		g.cancel()
		g.cancel = nil
	}
	g.seq++
}
