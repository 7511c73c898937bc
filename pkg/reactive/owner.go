package reactive

import (
	"sync"
	"sync/atomic"
)

// maxFlushPasses bounds the number of effect/tick rounds a single Flush runs.
const maxFlushPasses = 64

// Owner is an ownership scope. It owns child owners, effects, memos,
// cleanup callbacks and injected values, and tears all of them down on
// Dispose. A root owner also acts as the scheduler for its subtree: dirty
// effects and NextTick callbacks wait for Flush.
type Owner struct {
	id uint64

	parent *Owner

	children   []*Owner
	childrenMu sync.Mutex

	effects   []*Effect
	effectsMu sync.Mutex

	cleanups   []func()
	cleanupsMu sync.Mutex

	pendingEffects   []*Effect
	pendingEffectsMu sync.Mutex

	ticks   []func()
	ticksMu sync.Mutex

	values   map[any]any
	valuesMu sync.RWMutex

	disposed atomic.Bool
}

// NewOwner creates a new owner with the given parent.
// A nil parent creates a root owner.
func NewOwner(parent *Owner) *Owner {
	o := &Owner{
		id:     nextID(),
		parent: parent,
	}

	if parent != nil {
		parent.addChild(o)
	}

	return o
}

// ID returns the unique identifier for this owner.
func (o *Owner) ID() uint64 {
	return o.id
}

// Parent returns the parent owner, or nil for a root owner.
func (o *Owner) Parent() *Owner {
	return o.parent
}

// Root returns the top of the owner tree.
func (o *Owner) Root() *Owner {
	root := o
	for root.parent != nil {
		root = root.parent
	}
	return root
}

// IsDisposed reports whether Dispose has been called.
func (o *Owner) IsDisposed() bool {
	return o.disposed.Load()
}

// Active reports whether the owner has not been disposed yet.
func (o *Owner) Active() bool {
	return !o.disposed.Load()
}

// Run executes fn with this owner as the current owner.
func (o *Owner) Run(fn func()) {
	WithOwner(o, fn)
}

func (o *Owner) addChild(child *Owner) {
	o.childrenMu.Lock()
	defer o.childrenMu.Unlock()
	o.children = append(o.children, child)
}

func (o *Owner) removeChild(child *Owner) {
	o.childrenMu.Lock()
	defer o.childrenMu.Unlock()

	for i, c := range o.children {
		if c == child {
			o.children = append(o.children[:i], o.children[i+1:]...)
			return
		}
	}
}

func (o *Owner) snapshotChildren() []*Owner {
	o.childrenMu.Lock()
	defer o.childrenMu.Unlock()
	children := make([]*Owner, len(o.children))
	copy(children, o.children)
	return children
}

func (o *Owner) registerEffect(e *Effect) {
	if o.disposed.Load() {
		return
	}

	o.effectsMu.Lock()
	defer o.effectsMu.Unlock()
	o.effects = append(o.effects, e)
}

func (o *Owner) unregisterEffect(e *Effect) {
	o.effectsMu.Lock()
	defer o.effectsMu.Unlock()
	for i, existing := range o.effects {
		if existing == e {
			o.effects = append(o.effects[:i], o.effects[i+1:]...)
			return
		}
	}
}

// OnCleanup registers a function to be called when this owner is disposed.
// Cleanups run in reverse order of registration. Registering on a disposed
// owner runs fn immediately.
func (o *Owner) OnCleanup(fn func()) {
	if o.disposed.Load() {
		fn()
		return
	}

	o.cleanupsMu.Lock()
	defer o.cleanupsMu.Unlock()
	o.cleanups = append(o.cleanups, fn)
}

func (o *Owner) scheduleEffect(e *Effect) {
	if o.disposed.Load() {
		return
	}

	o.pendingEffectsMu.Lock()
	defer o.pendingEffectsMu.Unlock()
	o.pendingEffects = append(o.pendingEffects, e)
}

// NextTick queues fn to run on the next Flush of this owner's tree root,
// after pending effects.
func (o *Owner) NextTick(fn func()) {
	root := o.Root()
	if root.disposed.Load() {
		return
	}
	root.ticksMu.Lock()
	defer root.ticksMu.Unlock()
	root.ticks = append(root.ticks, fn)
}

// RunPendingEffects runs all pending effects for this owner and its children.
func (o *Owner) RunPendingEffects() {
	if o.disposed.Load() {
		return
	}

	o.pendingEffectsMu.Lock()
	effects := o.pendingEffects
	o.pendingEffects = nil
	o.pendingEffectsMu.Unlock()

	for _, e := range effects {
		if e.pending.Load() {
			e.run()
		}
	}

	for _, child := range o.snapshotChildren() {
		child.RunPendingEffects()
	}
}

// HasPendingEffects returns true if this owner or any descendant has
// pending effects.
func (o *Owner) HasPendingEffects() bool {
	if o.disposed.Load() {
		return false
	}

	o.pendingEffectsMu.Lock()
	hasPending := len(o.pendingEffects) > 0
	o.pendingEffectsMu.Unlock()

	if hasPending {
		return true
	}

	for _, child := range o.snapshotChildren() {
		if child.HasPendingEffects() {
			return true
		}
	}

	return false
}

// Flush is the scheduler tick. It runs pending effects of the whole tree
// and then the queued NextTick callbacks, repeating while either produced
// more work.
func (o *Owner) Flush() {
	root := o.Root()
	for pass := 0; pass < maxFlushPasses; pass++ {
		root.RunPendingEffects()

		root.ticksMu.Lock()
		ticks := root.ticks
		root.ticks = nil
		root.ticksMu.Unlock()

		for _, fn := range ticks {
			fn()
		}

		if len(ticks) == 0 && !root.HasPendingEffects() {
			return
		}
	}
}

// Dispose cleans up this owner and all its children.
// Children are disposed in reverse order, then effects, then cleanups
// (also in reverse order).
func (o *Owner) Dispose() {
	if o.disposed.Swap(true) {
		return
	}

	if o.parent != nil {
		o.parent.removeChild(o)
	}

	o.childrenMu.Lock()
	children := o.children
	o.children = nil
	o.childrenMu.Unlock()

	for i := len(children) - 1; i >= 0; i-- {
		children[i].Dispose()
	}

	o.effectsMu.Lock()
	effects := o.effects
	o.effects = nil
	o.effectsMu.Unlock()

	for _, e := range effects {
		e.dispose()
	}

	o.cleanupsMu.Lock()
	cleanups := o.cleanups
	o.cleanups = nil
	o.cleanupsMu.Unlock()

	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}

	o.pendingEffectsMu.Lock()
	o.pendingEffects = nil
	o.pendingEffectsMu.Unlock()

	o.ticksMu.Lock()
	o.ticks = nil
	o.ticksMu.Unlock()
}
