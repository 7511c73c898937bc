package store

// GetterFunc computes a derived value from the canonical store. Reads of
// other members through s are tracked.
type GetterFunc func(s *Store) any

// Options declares a store with a state factory, getters and actions.
type Options struct {
	// State returns the initial state: a map[string]any, or a struct that
	// is converted to one (with a warning).
	State func() any

	Getters map[string]GetterFunc
	Actions map[string]ActionFunc

	// Hydrate runs after plugins when the registry held a snapshot for the
	// store, with that snapshot.
	Hydrate func(state *State, initial map[string]any)

	// Extra carries custom options for plugins.
	Extra map[string]any
}

// SetupFunc builds a store's members. It runs once per build inside the
// store scope.
type SetupFunc func() *Fields

// Definition is a declared store. Declaring one touches no registry; the
// store is built on first use and cached per registry.
type Definition struct {
	id      string
	options *Options
	setup   SetupFunc
	extras  map[string]any
}

// DefineOption configures DefineSetup.
type DefineOption func(*Definition)

// WithExtra sets a custom option visible to plugins.
func WithExtra(key string, value any) DefineOption {
	return func(d *Definition) {
		if d.extras == nil {
			d.extras = make(map[string]any)
		}
		d.extras[key] = value
	}
}

// Define declares an options store.
//
//	var useCounter = store.Define("counter", store.Options{
//	    State: func() any { return map[string]any{"count": 0} },
//	    Actions: map[string]store.ActionFunc{
//	        "increment": func(s *store.Store, _ ...any) (any, error) {
//	            return nil, s.Set("count", store.Value[int](s, "count")+1)
//	        },
//	    },
//	})
func Define(id string, opts Options) *Definition {
	o := opts
	return &Definition{id: id, options: &o}
}

// DefineSetup declares a setup store.
func DefineSetup(id string, setup SetupFunc, opts ...DefineOption) *Definition {
	d := &Definition{id: id, setup: setup}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ID returns the store id.
func (d *Definition) ID() string { return d.id }

func (d *Definition) extra() map[string]any {
	out := make(map[string]any)
	if d.options != nil {
		for k, v := range d.options.Extra {
			out[k] = v
		}
	}
	for k, v := range d.extras {
		out[k] = v
	}
	return out
}

// Resolve returns the store for this definition, building it on first use.
//
// The registry is r when given, else the one provided to the current owner
// tree, else the active registry. The chosen registry becomes active.
func (d *Definition) Resolve(r *Registry) (*Store, error) {
	if r == nil {
		if injected, ok := Injected(); ok {
			r = injected
		}
	}
	if r != nil {
		SetActive(r)
	} else if r = Active(); r == nil {
		return nil, errNoActiveRegistry(d.id)
	}

	if s, ok := r.Store(d.id); ok {
		return s, nil
	}
	return r.build(d)
}

// Use is Resolve that panics on failure. At most one registry may be
// passed.
func (d *Definition) Use(r ...*Registry) *Store {
	var reg *Registry
	if len(r) > 0 {
		reg = r[0]
	}
	s, err := d.Resolve(reg)
	if err != nil {
		panic(err)
	}
	return s
}
