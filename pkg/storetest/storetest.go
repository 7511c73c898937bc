package storetest

import (
	"context"
	"encoding/json"
	"reflect"
	"sync"
	"testing"

	"github.com/vango-dev/vstore/pkg/persist"
	"github.com/vango-dev/vstore/pkg/reactive"
	"github.com/vango-dev/vstore/pkg/store"
)

// NewRegistry returns an installed registry that is also the active one.
// It is disposed, and the active registry cleared, when the test ends.
func NewRegistry(tb testing.TB, opts ...store.Option) *store.Registry {
	tb.Helper()
	r := store.New(opts...)
	if err := r.Install(reactive.NewOwner(nil)); err != nil {
		tb.Fatalf("install registry: %v", err)
	}
	tb.Cleanup(func() {
		r.Dispose()
		store.SetActive(nil)
	})
	return r
}

// Recorder collects the mutations delivered to a store subscription.
type Recorder struct {
	mu        sync.Mutex
	mutations []store.Mutation
	states    []map[string]any
	remove    func()
}

// Record subscribes a Recorder to s. Subscriptions are detached and
// delivered inside the write (FlushSync), so no Tick is needed to observe
// direct writes.
func Record(s *store.Store) *Recorder {
	rec := &Recorder{}
	rec.remove = s.Subscribe(func(m store.Mutation, state map[string]any) {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		rec.mutations = append(rec.mutations, m)
		rec.states = append(rec.states, state)
	}, store.Detached(), store.FlushSync())
	return rec
}

// Mutations returns the recorded mutations in delivery order.
func (r *Recorder) Mutations() []store.Mutation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]store.Mutation(nil), r.mutations...)
}

// Last returns the last mutation and the state delivered with it.
func (r *Recorder) Last() (store.Mutation, map[string]any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.mutations) == 0 {
		return store.Mutation{}, nil, false
	}
	n := len(r.mutations) - 1
	return r.mutations[n], r.states[n], true
}

// Types returns the type of every recorded mutation.
func (r *Recorder) Types() []store.MutationType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]store.MutationType, len(r.mutations))
	for i, m := range r.mutations {
		out[i] = m.Type
	}
	return out
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mutations = nil
	r.states = nil
}

// Stop removes the subscription.
func (r *Recorder) Stop() {
	r.remove()
}

// ExpectTypes fails tb unless the recorded mutation types equal want.
func (r *Recorder) ExpectTypes(tb testing.TB, want ...store.MutationType) {
	tb.Helper()
	got := r.Types()
	if len(want) == 0 && len(got) == 0 {
		return
	}
	if !reflect.DeepEqual(got, want) {
		tb.Errorf("mutation types = %v, want %v", got, want)
	}
}

// ExpectState fails tb unless the state of s equals want. Both sides are
// compared in their JSON form, so 3 and 3.0 are the same value.
func ExpectState(tb testing.TB, s *store.Store, want map[string]any) {
	tb.Helper()
	got := s.State()
	if !Equal(got, want) {
		tb.Errorf("state of %q = %v, want %v", s.ID(), got, want)
	}
}

// ExpectValue fails tb unless the field name of s equals want in JSON form.
func ExpectValue(tb testing.TB, s *store.Store, name string, want any) {
	tb.Helper()
	got, ok := s.Lookup(name)
	if !ok {
		tb.Errorf("%s has no field %q", s.ID(), name)
		return
	}
	if !Equal(got, want) {
		tb.Errorf("%s.%s = %v, want %v", s.ID(), name, got, want)
	}
}

// Equal reports whether a and b encode to the same JSON value.
func Equal(a, b any) bool {
	na, errA := normalize(a)
	nb, errB := normalize(b)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return reflect.DeepEqual(na, nb)
}

func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	err = json.Unmarshal(data, &out)
	return out, err
}

// Restart saves the state of r to backend and returns a new registry
// hydrated from it, as a process restart would. Stores of the new
// registry are built lazily, as usual.
func Restart(tb testing.TB, r *store.Registry, backend persist.SnapshotStore, opts ...store.Option) *store.Registry {
	tb.Helper()
	ctx := context.Background()
	const key = "storetest"

	data, err := persist.Encode(r.State())
	if err != nil {
		tb.Fatalf("encode snapshot: %v", err)
	}
	if err := backend.Save(ctx, key, data); err != nil {
		tb.Fatalf("save snapshot: %v", err)
	}

	next := NewRegistry(tb, opts...)
	found, err := persist.NewPersister(backend, key).Restore(ctx, next)
	if err != nil {
		tb.Fatalf("restore snapshot: %v", err)
	}
	if !found {
		tb.Fatalf("restore snapshot: nothing saved under %q", key)
	}
	return next
}
