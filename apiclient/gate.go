package apiclient

import (
	"context"
	"sync"
)

// gate allows at most one refresh in flight. Callers that find it held wait
// for release instead of refreshing again.
type gate struct {
	mu   sync.Mutex
	done chan struct{}
}

// Wait blocks until the gate is free or ctx is done.
func (g *gate) Wait(ctx context.Context) error {
	for {
		g.mu.Lock()
		done := g.done
		g.mu.Unlock()

		if done == nil {
			return nil
		}
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// TryAcquire takes the gate if it is free. The returned release func is safe
// to call more than once.
func (g *gate) TryAcquire() (func(), bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.done != nil {
		return nil, false
	}
	done := make(chan struct{})
	g.done = done

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			g.done = nil
			g.mu.Unlock()
			close(done)
		})
	}, true
}

// Locked reports whether a refresh is in flight.
func (g *gate) Locked() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.done != nil
}
