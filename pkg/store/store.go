package store

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/vango-dev/vstore/pkg/reactive"
)

// BoundAction is an action bound to its store.
type BoundAction func(args ...any) (any, error)

// field is one public member of a store.
type field struct {
	kind     Kind
	ref      Ref
	readable Readable
	action   ActionFunc
	raw      ActionFunc
	value    any
}

// Store is a named singleton bundle of state, getters and actions living
// in a Registry. Every member is reached through explicit accessors: Get,
// Set and Call for single fields, State and Refs for the whole store.
type Store struct {
	id         string
	instanceID string
	registry   *Registry
	scope      *reactive.Owner
	logger     *slog.Logger
	options    bool

	mu     sync.RWMutex
	order  []string
	fields map[string]*field

	entry *stateEntry

	subscriptions       subscriptionList[SubscriptionFunc]
	actionSubscriptions subscriptionList[ActionListener]

	isListening     atomic.Bool
	isSyncListening atomic.Bool
	patchGen        atomic.Uint64

	reset    func() error
	disposed atomic.Bool
}

func newStore(r *Registry, id string, options bool) *Store {
	return &Store{
		id:         id,
		instanceID: uuid.NewString(),
		registry:   r,
		scope:      reactive.NewOwner(r.scope),
		logger:     r.logger.With("store", id),
		options:    options,
		fields:     make(map[string]*field),
		entry:      newStateEntry(),
	}
}

// ID returns the store identifier.
func (s *Store) ID() string { return s.id }

// InstanceID is unique per built instance. A store rebuilt after Dispose
// gets a new one.
func (s *Store) InstanceID() string { return s.instanceID }

// Registry returns the registry the store lives in.
func (s *Store) Registry() *Registry { return s.registry }

// IsDisposed reports whether Dispose has been called.
func (s *Store) IsDisposed() bool { return s.disposed.Load() }

func (s *Store) field(name string) (*field, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.fields[name]
	return f, ok
}

func (s *Store) setField(name string, f *field) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.fields[name]; !exists {
		s.order = append(s.order, name)
	}
	s.fields[name] = f
}

func (s *Store) addStateField(name string, ref Ref) {
	s.setField(name, &field{kind: KindState, ref: ref})
	s.entry.put(name, ref)
}

// Get returns the current value of a field and tracks the read. State and
// getters return their value, actions a BoundAction, properties holding a
// Readable their unwrapped value. Unknown names return nil.
func (s *Store) Get(name string) any {
	v, _ := s.Lookup(name)
	return v
}

// Lookup is Get that also reports whether the field exists.
func (s *Store) Lookup(name string) (any, bool) {
	f, ok := s.field(name)
	if !ok {
		return nil, false
	}
	switch f.kind {
	case KindState:
		return f.ref.AnyGet(), true
	case KindGetter:
		return f.readable.AnyGet(), true
	case KindAction:
		return s.bind(f.action), true
	default:
		if r, ok := f.value.(Readable); ok {
			return r.AnyGet(), true
		}
		return f.value, true
	}
}

// Set writes a state field or a property. Writing state this way is a
// direct mutation: subscribers see it through their watcher.
func (s *Store) Set(name string, value any) error {
	f, ok := s.field(name)
	if !ok {
		return errUnknownField(s.id, name)
	}
	switch f.kind {
	case KindState:
		if err := f.ref.AnySet(value); err != nil {
			return errTypeMismatch(s.id, name, err)
		}
		return nil
	case KindGetter, KindAction:
		return errReadOnly(s.id, name, f.kind)
	default:
		if r, ok := f.value.(Ref); ok {
			if err := r.AnySet(value); err != nil {
				return errTypeMismatch(s.id, name, err)
			}
			return nil
		}
		s.setField(name, &field{kind: KindValue, value: value})
		return nil
	}
}

// Call invokes an action by name.
func (s *Store) Call(name string, args ...any) (any, error) {
	f, ok := s.field(name)
	if !ok || f.kind != KindAction {
		return nil, errUnknownAction(s.id, name)
	}
	return f.action(s, args...)
}

// Action returns the named action bound to the store, or nil.
func (s *Store) Action(name string) BoundAction {
	f, ok := s.field(name)
	if !ok || f.kind != KindAction {
		return nil
	}
	return s.bind(f.action)
}

func (s *Store) bind(fn ActionFunc) BoundAction {
	return func(args ...any) (any, error) {
		return fn(s, args...)
	}
}

// Has reports whether the store has a member called name.
func (s *Store) Has(name string) bool {
	_, ok := s.field(name)
	return ok
}

// Kind returns the kind of the named member, or 0.
func (s *Store) Kind(name string) Kind {
	if f, ok := s.field(name); ok {
		return f.kind
	}
	return 0
}

// Keys returns every member name in declaration order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// KeysOf returns the member names of one kind in declaration order.
func (s *Store) KeysOf(kind Kind) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, name := range s.order {
		if s.fields[name].kind == kind {
			out = append(out, name)
		}
	}
	return out
}

// State returns a copy of the store state and tracks the read.
func (s *Store) State() map[string]any {
	return s.entry.snapshot(true)
}

// SetState assigns every key of state in a single patch.
func (s *Store) SetState(state map[string]any) error {
	return s.PatchFunc(func(st *State) error {
		for _, key := range sortedKeys(state) {
			if err := st.Set(key, state[key]); err != nil {
				return err
			}
		}
		return nil
	})
}

// Reset restores the initial state of an options store in one patch.
// Setup stores return ErrResetUnsupported.
func (s *Store) Reset() error {
	if s.reset == nil {
		return ErrResetUnsupported
	}
	return s.reset()
}

// Refs returns the observable members of the store: state refs, getters
// and properties holding a Readable. Actions and plain values are left out.
func (s *Store) Refs() map[string]Readable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Readable, len(s.fields))
	for name, f := range s.fields {
		switch f.kind {
		case KindState:
			out[name] = f.ref
		case KindGetter:
			out[name] = f.readable
		case KindValue:
			if r, ok := f.value.(Readable); ok {
				out[name] = r
			}
		}
	}
	return out
}

// OnDispose registers fn to run when the store is disposed.
func (s *Store) OnDispose(fn func()) {
	s.scope.OnCleanup(fn)
}

// Dispose stops the store scope, drops every subscription and removes the
// store and its state from the registry. Calling it again does nothing.
func (s *Store) Dispose() {
	if s.disposed.Swap(true) {
		return
	}
	s.scope.Dispose()
	s.subscriptions.clear()
	s.actionSubscriptions.clear()
	s.registry.remove(s.id, s)
	s.logger.Debug("store disposed")
}

// Value returns a store member converted to T. It returns the zero value
// when the member is missing or cannot be converted.
func Value[T any](s *Store, name string) T {
	v, ok := s.Lookup(name)
	if !ok {
		var zero T
		return zero
	}
	out, _ := reactive.Convert[T](v)
	return out
}
