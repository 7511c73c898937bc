package store

import (
	"reflect"

	"github.com/vango-dev/vstore/pkg/reactive"
)

// build constructs the store for def and registers it. The store is in
// the cache before setup runs, so setup, getters and plugins that look it
// up again get the instance being built instead of recursing.
func (r *Registry) build(def *Definition) (*Store, error) {
	if r.scope.IsDisposed() {
		return nil, errRegistryDisposed(def.id)
	}

	s := newStore(r, def.id, def.options != nil)
	if existing, added := r.register(s); !added {
		s.scope.Dispose()
		return existing, nil
	}

	built := false
	defer func() {
		if !built {
			r.remove(s.id, s)
			s.disposed.Store(true)
			s.scope.Dispose()
		}
	}()

	initial, hasInitial := r.initialState(def.id)

	var fields *Fields
	s.scope.Run(func() {
		if def.options != nil {
			fields = s.optionsFields(def.options, initial, hasInitial)
		} else {
			fields = def.setup()
		}
	})
	if fields == nil {
		fields = NewFields()
	}

	actions := make(map[string]ActionFunc)
	for _, name := range fields.order {
		entry := fields.entries[name]
		switch entry.kind {
		case KindState:
			if !s.options && hasInitial && entry.hydrate {
				if v, ok := initial[name]; ok {
					s.hydrateRef(name, entry.ref, v)
				}
			}
			s.addStateField(name, entry.ref)
		case KindGetter:
			s.setField(name, &field{kind: KindGetter, readable: entry.readable})
		case KindAction:
			actions[name] = entry.action
			s.setField(name, &field{
				kind:   KindAction,
				action: s.wrapAction(name, entry.action),
				raw:    entry.action,
			})
		default:
			s.setField(name, &field{kind: KindValue, value: entry.value})
		}
	}

	app := r.App()
	pluginOpts := PluginOptions{
		ID:      def.id,
		Setup:   def.options == nil,
		Actions: actions,
		Extra:   def.extra(),
	}
	for _, plugin := range r.activePlugins() {
		var props map[string]any
		s.scope.Run(func() {
			props = plugin(PluginContext{
				Store:    s,
				App:      app,
				Registry: r,
				Options:  pluginOpts,
			})
		})
		s.mergeProperties(props)
	}

	if def.options != nil && def.options.Hydrate != nil && hasInitial {
		st := &State{store: s}
		def.options.Hydrate(st, CloneMap(initial))
		st.settle()
	}
	r.consumeInitial(def.id)

	s.isListening.Store(true)
	s.isSyncListening.Store(true)
	built = true

	s.logger.Debug("store built",
		"instance", s.instanceID,
		"fields", len(fields.order),
		"hydrated", hasInitial,
	)
	return s, nil
}

// hydrateRef writes a snapshot value into a setup state ref. Plain maps
// are merged into the current value.
func (s *Store) hydrateRef(name string, ref Ref, value any) {
	if patch, ok := value.(map[string]any); ok {
		if current, ok := ref.AnyPeek().(map[string]any); ok {
			value = MergeInto(CloneMap(current), patch)
		}
	}
	if err := ref.AnySet(Clone(value)); err != nil {
		s.logger.Warn("hydration value does not fit state field", "field", name, "error", err)
	}
}

// optionsFields turns an options record into tagged fields. It runs inside
// the store scope so getter memos stop with the store.
func (s *Store) optionsFields(opts *Options, initial map[string]any, hasInitial bool) *Fields {
	var base map[string]any
	if hasInitial {
		// The snapshot is the whole state; the factory is not called.
		base = CloneMap(initial)
	} else {
		base = s.initialOptionsState(opts)
	}

	f := NewFields()
	for _, key := range sortedKeys(base) {
		ref := reactive.NewSignal[any](base[key])
		s.entry.put(key, ref)
		if _, clash := opts.Getters[key]; clash {
			s.logger.Warn("getter has the same name as a state field", "getter", key)
			continue
		}
		f.State(key, ref)
	}

	for _, name := range sortedKeys(opts.Actions) {
		f.Action(name, opts.Actions[name])
	}

	for _, name := range sortedKeys(opts.Getters) {
		f.Getter(name, s.getter(opts.Getters[name]))
	}

	if opts.State != nil {
		s.reset = func() error {
			fresh := s.initialOptionsState(opts)
			return s.PatchFunc(func(st *State) error {
				for _, key := range sortedKeys(fresh) {
					if err := st.Set(key, fresh[key]); err != nil {
						return err
					}
				}
				return nil
			})
		}
	} else {
		s.reset = func() error {
			return s.PatchFunc(func(*State) error { return nil })
		}
	}
	return f
}

// getter wraps fn in a memo evaluated against the canonical store.
func (s *Store) getter(fn GetterFunc) *reactive.Memo[any] {
	r := s.registry
	return reactive.NewMemo(func() any {
		SetActive(r)
		current, ok := r.Store(s.id)
		if !ok {
			current = s
		}
		return fn(current)
	})
}

// initialOptionsState calls the state factory and turns its result into
// plain data.
func (s *Store) initialOptionsState(opts *Options) map[string]any {
	if opts.State == nil {
		return map[string]any{}
	}
	raw := opts.State()
	switch v := raw.(type) {
	case nil:
		return map[string]any{}
	case map[string]any:
		return CloneMap(v)
	}

	rv := reflect.ValueOf(raw)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.Struct {
		s.logger.Warn("state factory returned a struct instead of plain data; converting it",
			"type", reflect.TypeOf(raw).String())
	}

	plain, err := reactive.Convert[map[string]any](raw)
	if err != nil {
		s.logger.Warn("state factory result is not convertible to plain data", "error", err)
		return map[string]any{}
	}
	if plain == nil {
		plain = map[string]any{}
	}
	return plain
}
