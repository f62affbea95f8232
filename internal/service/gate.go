package service

import (
	"context"
	"sync"
)

// gate blocks submissions while paused. Waiters sleep on a channel that
// Resume closes, so a paused run costs no CPU.
type gate struct {
	mu     sync.Mutex
	closed chan struct{} // non-nil while paused
}

func (g *gate) Pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed == nil {
		g.closed = make(chan struct{})
	}
}

func (g *gate) Resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed != nil {
		close(g.closed)
		g.closed = nil
	}
}

func (g *gate) Paused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.closed != nil
}

// Wait returns nil once the gate is open, or ctx.Err() if ctx ends first.
func (g *gate) Wait(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		g.mu.Lock()
		ch := g.closed
		g.mu.Unlock()
		if ch == nil {
			return nil
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
