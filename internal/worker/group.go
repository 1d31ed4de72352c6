// Package worker provides bounded-concurrency fan-out for the build
// pipeline, adapted from mantle's lang/worker.WorkerGroup:
// same start/wait/cancel-on-first-error shape, updated to stdlib
// context instead of golang.org/x/net/context.
package worker

import (
	"context"
	"sync"

	"github.com/coreos/pkg/multierror"
)

// Func is a unit of work a Group runs in its own goroutine.
type Func func(context.Context) error

// Group runs a bounded number of Funcs concurrently, cancelling the
// shared context as soon as one returns an error, and aggregating every
// error it saw via multierror.
type Group struct {
	ctx    context.Context
	cancel context.CancelFunc
	limit  chan struct{}

	mu     sync.Mutex
	errors multierror.Error
}

// New creates a Group capped at limit concurrent workers.
func New(ctx context.Context, limit int) *Group {
	g := &Group{limit: make(chan struct{}, limit)}
	g.ctx, g.cancel = context.WithCancel(ctx)
	return g
}

func (g *Group) addErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.errors = append(g.errors, err)
	g.cancel()
}

func (g *Group) getErr() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.errors.AsError()
}

// Start launches fn in a new goroutine, blocking until a worker slot is
// free. It returns the group's context error if the group has already
// been cancelled.
func (g *Group) Start(fn Func) error {
	select {
	default:
	case <-g.ctx.Done():
		return g.ctx.Err()
	}
	select {
	case g.limit <- struct{}{}:
		go func() {
			if err := fn(g.ctx); err != nil {
				g.addErr(err)
			}
			<-g.limit
		}()
		return nil
	case <-g.ctx.Done():
		return g.ctx.Err()
	}
}

// Wait blocks until every started worker has returned, then reports the
// aggregated error (nil if none failed).
func (g *Group) Wait() error {
	defer g.cancel()
	for i := 0; i < cap(g.limit); i++ {
		g.limit <- struct{}{}
	}
	return g.getErr()
}
