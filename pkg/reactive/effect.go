package reactive

import (
	"sync"
	"sync/atomic"
)

// maxSyncReruns bounds how often a sync effect re-runs because of writes
// made by its own body.
const maxSyncReruns = 100

// Effect represents a reactive side effect that runs when its dependencies change.
//
// Effects run immediately when created, and re-run whenever any signal or memo
// they read during execution changes. They can return a Cleanup function that
// will be called before the effect re-runs or when the effect is disposed.
//
// By default a dirty effect is queued on its owner and re-runs on the next
// Owner.Flush. Effects created with Sync re-run inside the write that
// invalidated them.
type Effect struct {
	id uint64

	fn      func() Cleanup
	cleanup Cleanup

	sources   []*signalBase
	sourcesMu sync.Mutex

	owner *Owner

	pending  atomic.Bool
	running  atomic.Bool
	disposed atomic.Bool

	sync bool
}

// MarkDirty marks the effect as needing to re-run.
// Implements the Listener interface.
func (e *Effect) MarkDirty() {
	if e.disposed.Load() {
		return
	}

	if e.sync || e.owner == nil {
		if e.running.Load() {
			e.pending.Store(true)
			return
		}
		e.run()
		return
	}

	if e.pending.CompareAndSwap(false, true) {
		e.owner.scheduleEffect(e)
	}
}

// ID returns the unique identifier for this effect.
func (e *Effect) ID() uint64 {
	return e.id
}

// run executes the effect function.
// This is called during initial creation and when dependencies change.
func (e *Effect) run() {
	if e.disposed.Load() {
		return
	}
	e.running.Store(true)
	defer e.running.Store(false)

	for i := 0; i < maxSyncReruns; i++ {
		e.pending.Store(false)
		e.runOnce()
		if !(e.sync || e.owner == nil) || !e.pending.Load() || e.disposed.Load() {
			return
		}
	}
}

func (e *Effect) runOnce() {
	if e.cleanup != nil {
		e.cleanup()
		e.cleanup = nil
	}

	e.sourcesMu.Lock()
	for _, source := range e.sources {
		source.unsubscribe(e)
	}
	e.sources = e.sources[:0]
	e.sourcesMu.Unlock()

	WithListener(e, func() {
		e.cleanup = e.fn()
	})
}

func (e *Effect) addSource(source *signalBase) {
	e.sourcesMu.Lock()
	defer e.sourcesMu.Unlock()

	for _, s := range e.sources {
		if s == source {
			return
		}
	}
	e.sources = append(e.sources, source)
}

// Stop disposes the effect and detaches it from its owner.
func (e *Effect) Stop() {
	e.dispose()
	if e.owner != nil {
		e.owner.unregisterEffect(e)
	}
}

// Stopped reports whether the effect has been disposed.
func (e *Effect) Stopped() bool {
	return e.disposed.Load()
}

// dispose cleans up the effect and unsubscribes from all sources.
func (e *Effect) dispose() {
	if e.disposed.Swap(true) {
		return
	}

	if e.cleanup != nil {
		e.cleanup()
		e.cleanup = nil
	}

	e.sourcesMu.Lock()
	for _, source := range e.sources {
		source.unsubscribe(e)
	}
	e.sources = nil
	e.sourcesMu.Unlock()
}

// EffectOption configures an Effect.
type EffectOption func(*Effect)

// Sync makes the effect re-run inside the write that invalidated it
// instead of waiting for the owner's next flush.
func Sync() EffectOption {
	return func(e *Effect) {
		e.sync = true
	}
}

// CreateEffect creates and immediately runs an effect owned by the
// current owner.
//
// Example:
//
//	reactive.CreateEffect(func() reactive.Cleanup {
//	    log.Println("count is", count.Get())
//	    return nil
//	})
func CreateEffect(fn func() Cleanup, opts ...EffectOption) *Effect {
	owner := getCurrentOwner()

	e := &Effect{
		id:    nextID(),
		fn:    fn,
		owner: owner,
	}

	for _, opt := range opts {
		opt(e)
	}

	if owner != nil {
		owner.registerEffect(e)
	}

	e.run()

	return e
}

// OnCleanup registers fn with the current owner; it runs when the owner is
// disposed. Without a current owner fn is never called.
func OnCleanup(fn func()) {
	if owner := getCurrentOwner(); owner != nil {
		owner.OnCleanup(fn)
	}
}

var _ sourceTracker = (*Effect)(nil)
