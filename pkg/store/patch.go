package store

import (
	"github.com/vango-dev/vstore/pkg/reactive"
)

// MutationType tells how a state change was made.
type MutationType string

const (
	// MutationDirect is a write to a state field outside of a patch.
	MutationDirect MutationType = "direct"
	// MutationPatchObject is a Patch with a partial state.
	MutationPatchObject MutationType = "patch object"
	// MutationPatchFunction is a PatchFunc.
	MutationPatchFunction MutationType = "patch function"
)

// Mutation describes one notification to state subscribers.
type Mutation struct {
	Type    MutationType   `json:"type"`
	StoreID string         `json:"storeId"`
	Payload map[string]any `json:"payload,omitempty"`
	Events  []Event        `json:"events,omitempty"`
}

// SubscriptionFunc receives a mutation and a copy of the resulting state.
type SubscriptionFunc func(m Mutation, state map[string]any)

type subscribeConfig struct {
	detached bool
	sync     bool
}

// SubscribeOption configures Subscribe and OnAction.
type SubscribeOption func(*subscribeConfig)

// Detached keeps the subscription alive when the owner that created it is
// disposed.
func Detached() SubscribeOption {
	return func(c *subscribeConfig) { c.detached = true }
}

// FlushSync delivers direct mutations inside the write instead of on the
// next registry tick. Ignored by OnAction.
func FlushSync() SubscribeOption {
	return func(c *subscribeConfig) { c.sync = true }
}

// Patch merges partial into the state and notifies subscribers once.
// Plain maps are merged recursively, everything else is replaced, and
// keys the state does not have yet are added.
func (s *Store) Patch(partial map[string]any) error {
	payload := CloneMap(partial)
	return s.applyPatch(MutationPatchObject, payload, func(st *State) error {
		return st.Merge(partial)
	})
}

// PatchFunc runs fn against the state and notifies subscribers once,
// however many fields fn writes.
func (s *Store) PatchFunc(fn func(st *State) error) error {
	return s.applyPatch(MutationPatchFunction, nil, fn)
}

func (s *Store) applyPatch(typ MutationType, payload map[string]any, fn func(*State) error) error {
	s.isListening.Store(false)
	s.isSyncListening.Store(false)
	defer func() {
		if rec := recover(); rec != nil {
			s.isSyncListening.Store(true)
			s.isListening.Store(true)
			panic(rec)
		}
	}()

	st := &State{store: s}
	var err error
	reactive.Batch(func() {
		defer st.settle()
		err = fn(st)
	})

	// Only the latest patch may re-arm async listening.
	gen := s.patchGen.Add(1)
	s.registry.scope.NextTick(func() {
		if s.patchGen.Load() == gen {
			s.isListening.Store(true)
		}
	})
	s.isSyncListening.Store(true)

	m := Mutation{
		Type:    typ,
		StoreID: s.id,
		Payload: payload,
		Events:  st.events,
	}
	state := s.entry.snapshot(false)
	s.subscriptions.each(func(cb SubscriptionFunc) {
		cb(m, state)
	})
	return err
}

// Subscribe registers cb for state changes and returns its remover.
//
// Patches notify cb once, synchronously. Direct writes to state fields are
// picked up by a watcher over the whole state: by default it reports on
// the next Registry.Tick, with FlushSync inside the write itself.
//
// Unless Detached is given, the subscription is removed when the current
// owner is disposed.
func (s *Store) Subscribe(cb SubscriptionFunc, opts ...SubscribeOption) (remove func()) {
	var cfg subscribeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	var stopWatch func()
	remove = s.subscriptions.add(cb, cfg.detached, func() {
		if stopWatch != nil {
			stopWatch()
		}
	})

	if !s.scope.Active() {
		return remove
	}

	listening := &s.isListening
	var watchOpts []reactive.WatchOption
	if cfg.sync {
		listening = &s.isSyncListening
		watchOpts = append(watchOpts, reactive.FlushSync())
	}

	s.scope.Run(func() {
		stopWatch = reactive.Watch(func() map[string]any {
			return s.entry.snapshot(true)
		}, func(state, old map[string]any) {
			if !listening.Load() {
				return
			}
			events := diffState(old, state)
			if len(events) == 0 {
				return
			}
			cb(Mutation{Type: MutationDirect, StoreID: s.id, Events: events}, state)
		}, watchOpts...)
	})

	return remove
}
