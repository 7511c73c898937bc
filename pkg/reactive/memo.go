package reactive

import (
	"sync"
	"sync/atomic"
)

// Memo is a cached computation that automatically tracks its dependencies.
// When any dependency changes, the memo is invalidated and will recompute
// on the next read.
//
// Memos are lazy: they only compute their value when Get() is called.
// If multiple signals change before a read, the memo only recomputes once.
//
// A memo created while an owner is current is stopped when that owner is
// disposed. A stopped memo no longer tracks anything and keeps returning
// its last computed value.
type Memo[T any] struct {
	base signalBase

	compute func() T

	value   T
	valueMu sync.RWMutex

	// valid indicates whether the cached value is current.
	valid atomic.Bool

	sources   []*signalBase
	sourcesMu sync.Mutex

	equal func(T, T) bool

	// computing prevents infinite recursion in circular dependencies.
	computing atomic.Bool

	stopped atomic.Bool
}

// NewMemo creates a new memo with the given computation function.
// The computation is not run immediately; it runs lazily on first Get().
func NewMemo[T any](compute func() T) *Memo[T] {
	memo := &Memo[T]{
		base:    signalBase{id: nextID()},
		compute: compute,
	}
	if owner := getCurrentOwner(); owner != nil {
		owner.OnCleanup(memo.Stop)
	}
	return memo
}

// Get returns the memo's value, recomputing if necessary.
// Creates a dependency on this memo for the current listener.
func (m *Memo[T]) Get() T {
	m.base.track()
	return m.Peek()
}

// Peek returns the memo's value without subscribing.
// Still triggers recomputation if the value is invalid.
func (m *Memo[T]) Peek() T {
	if !m.valid.Load() && !m.stopped.Load() {
		m.recompute()
	}
	m.valueMu.RLock()
	value := m.value
	m.valueMu.RUnlock()
	return value
}

// AnyGet is Get without the type parameter.
func (m *Memo[T]) AnyGet() any { return m.Get() }

// AnyPeek is Peek without the type parameter.
func (m *Memo[T]) AnyPeek() any { return m.Peek() }

// MarkDirty invalidates the memo and propagates to subscribers.
// Implements the Listener interface.
func (m *Memo[T]) MarkDirty() {
	if m.stopped.Load() {
		return
	}
	if m.valid.CompareAndSwap(true, false) {
		m.base.notifySubscribers()
	}
}

// ID returns the unique identifier for this memo.
func (m *Memo[T]) ID() uint64 {
	return m.base.id
}

// Stop detaches the memo from its sources. The cached value is kept.
func (m *Memo[T]) Stop() {
	if m.stopped.Swap(true) {
		return
	}
	m.sourcesMu.Lock()
	for _, source := range m.sources {
		source.unsubscribe(m)
	}
	m.sources = nil
	m.sourcesMu.Unlock()
}

// Stopped reports whether Stop has been called.
func (m *Memo[T]) Stopped() bool {
	return m.stopped.Load()
}

func (m *Memo[T]) addSource(source *signalBase) {
	m.sourcesMu.Lock()
	defer m.sourcesMu.Unlock()

	for _, s := range m.sources {
		if s == source {
			return
		}
	}
	m.sources = append(m.sources, source)
}

// WithEquals configures the memo with a custom equality function.
func (m *Memo[T]) WithEquals(fn func(T, T) bool) *Memo[T] {
	m.equal = fn
	return m
}

func (m *Memo[T]) recompute() {
	if m.computing.Swap(true) {
		// circular dependency
		return
	}
	defer m.computing.Store(false)

	m.sourcesMu.Lock()
	for _, source := range m.sources {
		source.unsubscribe(m)
	}
	m.sources = m.sources[:0]
	m.sourcesMu.Unlock()

	var newValue T
	WithListener(m, func() {
		newValue = m.compute()
	})

	m.valueMu.Lock()
	if m.equal == nil || !m.equal(m.value, newValue) {
		m.value = newValue
	}
	m.valueMu.Unlock()

	m.valid.Store(true)
}

var _ sourceTracker = (*Memo[int])(nil)
