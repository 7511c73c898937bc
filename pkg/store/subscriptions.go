package store

import (
	"sync"

	"github.com/vango-dev/vstore/pkg/reactive"
)

// subscription is one registered callback. Entries are compared by pointer,
// so registering the same function twice yields two independent entries.
type subscription[F any] struct {
	fn F
}

// subscriptionList is an ordered callback list. Insertion order is
// notification order.
type subscriptionList[F any] struct {
	mu      sync.Mutex
	entries []*subscription[F]
}

// add appends fn and returns its remover. The remover takes the entry out
// and calls onCleanup, both at most once. Unless detached, the remover is
// also registered with the current owner so the subscription goes away
// with the consumer that created it.
func (l *subscriptionList[F]) add(fn F, detached bool, onCleanup func()) (remove func()) {
	entry := &subscription[F]{fn: fn}

	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()

	remove = func() {
		if !l.removeEntry(entry) {
			return
		}
		if onCleanup != nil {
			onCleanup()
		}
	}

	if !detached {
		if owner := reactive.CurrentOwner(); owner != nil && owner.Active() {
			owner.OnCleanup(remove)
		}
	}

	return remove
}

func (l *subscriptionList[F]) removeEntry(entry *subscription[F]) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, e := range l.entries {
		if e == entry {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			return true
		}
	}
	return false
}

// snapshot returns the callbacks registered right now.
func (l *subscriptionList[F]) snapshot() []F {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]F, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.fn
	}
	return out
}

// each calls visit for a snapshot of the list. Callbacks added or removed
// during the pass do not affect it. A panicking callback aborts the pass.
func (l *subscriptionList[F]) each(visit func(F)) {
	for _, fn := range l.snapshot() {
		visit(fn)
	}
}

func (l *subscriptionList[F]) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *subscriptionList[F]) clear() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}
