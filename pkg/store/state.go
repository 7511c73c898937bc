package store

import (
	"reflect"
	"sort"
	"sync"

	"github.com/vango-dev/vstore/pkg/reactive"
)

// stateEntry is one store's slot in the registry state tree. It holds the
// same refs the store exposes as state fields, so writing through either
// side is the same write.
type stateEntry struct {
	mu   sync.RWMutex
	keys []string
	refs map[string]Ref

	// shape changes whenever a key is added or a ref replaced, so
	// watchers over the whole entry see new keys.
	shape *reactive.Signal[int]
}

func newStateEntry() *stateEntry {
	return &stateEntry{
		refs:  make(map[string]Ref),
		shape: reactive.NewSignal(0),
	}
}

func (e *stateEntry) put(key string, ref Ref) {
	e.mu.Lock()
	if _, exists := e.refs[key]; !exists {
		e.keys = append(e.keys, key)
	}
	e.refs[key] = ref
	e.mu.Unlock()
	e.shape.Update(func(n int) int { return n + 1 })
}

func (e *stateEntry) ref(key string) (Ref, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.refs[key]
	return r, ok
}

func (e *stateEntry) names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, len(e.keys))
	copy(out, e.keys)
	return out
}

// snapshot copies the current values. With track set, the read subscribes
// the current listener to every field and to the entry's shape.
func (e *stateEntry) snapshot(track bool) map[string]any {
	if track {
		_ = e.shape.Get()
	}
	e.mu.RLock()
	keys := make([]string, len(e.keys))
	copy(keys, e.keys)
	refs := make([]Ref, len(keys))
	for i, k := range keys {
		refs[i] = e.refs[k]
	}
	e.mu.RUnlock()

	out := make(map[string]any, len(keys))
	for i, k := range keys {
		if track {
			out[k] = Clone(refs[i].AnyGet())
		} else {
			out[k] = Clone(refs[i].AnyPeek())
		}
	}
	return out
}

// Event is one field write caused by a mutation.
type Event struct {
	Key string `json:"key"`
	Old any    `json:"old"`
	New any    `json:"new"`
}

// diffState lists the keys whose values differ between two snapshots,
// in key order.
func diffState(old, cur map[string]any) []Event {
	keys := make([]string, 0, len(cur))
	for k := range cur {
		keys = append(keys, k)
	}
	for k := range old {
		if _, ok := cur[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var events []Event
	for _, k := range keys {
		if !reflect.DeepEqual(old[k], cur[k]) {
			events = append(events, Event{Key: k, Old: old[k], New: cur[k]})
		}
	}
	return events
}

// State is a store's state as seen by a patch function or a hydrate
// callback. Reads are untracked; writes are recorded as events.
//
// Values returned by Get and Lookup are live: a map or slice edited in
// place is picked up when the patch function returns, exactly as if it
// had been passed to Set.
type State struct {
	store  *Store
	events []Event
	read   map[string]any
}

// Get returns the value of key, or nil.
func (st *State) Get(key string) any {
	v, _ := st.Lookup(key)
	return v
}

// Lookup returns the value of key and whether the key exists.
func (st *State) Lookup(key string) (any, bool) {
	ref, ok := st.store.entry.ref(key)
	if !ok {
		return nil, false
	}
	v := ref.AnyPeek()
	if _, seen := st.read[key]; !seen {
		if st.read == nil {
			st.read = make(map[string]any)
		}
		st.read[key] = Clone(v)
	}
	return v, true
}

// Has reports whether key is a state field.
func (st *State) Has(key string) bool {
	_, ok := st.store.entry.ref(key)
	return ok
}

// Keys returns the state keys in creation order.
func (st *State) Keys() []string {
	return st.store.entry.names()
}

// Set assigns key. Unknown keys become new state fields.
func (st *State) Set(key string, value any) error {
	value = Clone(value)
	delete(st.read, key)
	ref, ok := st.store.entry.ref(key)
	if !ok {
		st.store.addStateField(key, reactive.NewSignal[any](value))
		st.events = append(st.events, Event{Key: key, New: value})
		return nil
	}

	old := Clone(ref.AnyPeek())
	if err := ref.AnySet(value); err != nil {
		return errTypeMismatch(st.store.id, key, err)
	}
	if cur := ref.AnyPeek(); !reflect.DeepEqual(old, cur) {
		st.events = append(st.events, Event{Key: key, Old: old, New: Clone(cur)})
	}
	return nil
}

// settle reports fields whose live value was edited in place since it was
// read: subscribers of the field are notified and an event is recorded.
func (st *State) settle() {
	for _, key := range sortedKeys(st.read) {
		before := st.read[key]
		ref, ok := st.store.entry.ref(key)
		if !ok {
			continue
		}
		cur := ref.AnyPeek()
		if reflect.DeepEqual(before, cur) {
			continue
		}
		ref, _ = unwrapRef(ref)
		if t, ok := ref.(interface{ Trigger() }); ok {
			t.Trigger()
		} else if err := ref.AnySet(Clone(cur)); err != nil {
			st.store.registry.logger.Warn("in-place state edit not applied",
				"store", st.store.id, "key", key, "error", err)
			continue
		}
		st.events = append(st.events, Event{Key: key, Old: before, New: Clone(cur)})
	}
	st.read = nil
}

// Merge applies partial with MergeInto semantics: plain maps held by a
// field are merged, anything else replaces the field.
func (st *State) Merge(partial map[string]any) error {
	keys := make([]string, 0, len(partial))
	for k := range partial {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var firstErr error
	for _, key := range keys {
		value := partial[key]
		if sub, isMap := value.(map[string]any); isMap {
			if current, ok := st.Lookup(key); ok {
				if existing, ok := current.(map[string]any); ok {
					value = MergeInto(CloneMap(existing), sub)
				}
			}
		}
		if err := st.Set(key, value); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Snapshot returns a deep copy of the state.
func (st *State) Snapshot() map[string]any {
	return st.store.entry.snapshot(false)
}

// Events returns the writes recorded so far.
func (st *State) Events() []Event {
	return st.events
}
