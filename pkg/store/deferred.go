package store

import (
	"context"
	"sync"

	"github.com/vango-dev/vstore/pkg/reactive"
)

// Deferred is the pending result of an asynchronous action. An action
// returns one to signal that its outcome arrives later; action listeners'
// After and OnError hooks then run when it settles, on the goroutine that
// settles it.
type Deferred struct {
	mu      sync.Mutex
	done    chan struct{}
	settled bool
	value   any
	err     error
	waiters []func(any, error)
}

// NewDeferred returns an unsettled Deferred.
func NewDeferred() *Deferred {
	return &Deferred{done: make(chan struct{})}
}

// Go runs fn on a new goroutine and settles the returned Deferred with its
// result. A panic in fn rejects it.
func Go(fn func() (any, error)) *Deferred {
	d := NewDeferred()
	go func() {
		defer reactive.ReleaseGoroutine()
		defer func() {
			if rec := recover(); rec != nil {
				d.Reject(panicError(rec))
			}
		}()
		v, err := fn()
		if err != nil {
			d.Reject(err)
			return
		}
		d.Resolve(v)
	}()
	return d
}

// Resolved returns a Deferred already settled with v.
func Resolved(v any) *Deferred {
	d := NewDeferred()
	d.Resolve(v)
	return d
}

// Resolve settles d with v. Only the first Resolve or Reject counts.
func (d *Deferred) Resolve(v any) { d.settle(v, nil) }

// Reject settles d with err. Only the first Resolve or Reject counts.
func (d *Deferred) Reject(err error) { d.settle(nil, err) }

func (d *Deferred) settle(v any, err error) {
	d.mu.Lock()
	if d.settled {
		d.mu.Unlock()
		return
	}
	d.settled = true
	d.value, d.err = v, err
	waiters := d.waiters
	d.waiters = nil
	close(d.done)
	d.mu.Unlock()

	for _, w := range waiters {
		w(v, err)
	}
}

// onSettle calls fn once d settles; immediately when it already has.
func (d *Deferred) onSettle(fn func(any, error)) {
	d.mu.Lock()
	if d.settled {
		v, err := d.value, d.err
		d.mu.Unlock()
		fn(v, err)
		return
	}
	d.waiters = append(d.waiters, fn)
	d.mu.Unlock()
}

// Done is closed once d settles.
func (d *Deferred) Done() <-chan struct{} { return d.done }

// Await blocks until d settles or ctx is done.
func (d *Deferred) Await(ctx context.Context) (any, error) {
	select {
	case <-d.done:
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.value, d.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
