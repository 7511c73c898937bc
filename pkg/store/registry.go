package store

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/vango-dev/vstore/pkg/reactive"
)

// App is the host application a registry is installed into. It only has
// to hold injected values; a root *reactive.Owner qualifies.
type App interface {
	SetValue(key, value any)
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for diagnostics. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// Registry owns the state tree, the store cache, the plugin list and the
// root scope every store scope hangs off.
//
// The state tree and the store cache always hold the same ids: a store and
// its state are added in one step and removed in one step. Snapshots
// handed to Hydrate for stores that do not exist yet are kept apart until
// the store is built.
type Registry struct {
	scope  *reactive.Owner
	logger *slog.Logger

	mu      sync.RWMutex
	app     App
	state   map[string]*stateEntry
	initial map[string]map[string]any
	stores  map[string]*Store
	plugins []Plugin
	queued  []Plugin
}

// New creates an empty registry. It has no side effects; call Install to
// bind it to an application.
func New(opts ...Option) *Registry {
	r := &Registry{
		scope:   reactive.NewOwner(nil),
		logger:  slog.Default(),
		state:   make(map[string]*stateEntry),
		initial: make(map[string]map[string]any),
		stores:  make(map[string]*Store),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Install binds the registry to app, makes it active, provides it to
// every owner below app and moves plugins registered before install into
// the active plugin list. A registry can be installed once.
func (r *Registry) Install(app App) error {
	r.mu.Lock()
	if r.app != nil {
		r.mu.Unlock()
		return ErrAlreadyInstalled
	}
	r.app = app
	r.plugins = append(r.plugins, r.queued...)
	flushed := len(r.queued)
	r.queued = nil
	r.mu.Unlock()

	SetActive(r)
	registryContext.Provide(app, r)
	r.logger.Debug("registry installed", "plugins", flushed)
	return nil
}

// Use registers a plugin for every store built from now on. Plugins
// registered before Install wait for it.
func (r *Registry) Use(p Plugin) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.app == nil {
		r.queued = append(r.queued, p)
	} else {
		r.plugins = append(r.plugins, p)
	}
	return r
}

// App returns the installed application, or nil before Install.
func (r *Registry) App() App {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.app
}

// Installed reports whether Install has been called.
func (r *Registry) Installed() bool {
	return r.App() != nil
}

// Scope returns the root scope. Owners created below it are torn down
// with the registry.
func (r *Registry) Scope() *reactive.Owner { return r.scope }

// Logger returns the registry logger.
func (r *Registry) Logger() *slog.Logger { return r.logger }

func (r *Registry) activePlugins() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Plugin, len(r.plugins))
	copy(out, r.plugins)
	return out
}

// Store returns the live store with the given id.
func (r *Registry) Store(id string) (*Store, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stores[id]
	return s, ok
}

// IDs returns the ids of all live stores, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.stores)
}

// Hydrate seeds store state from a snapshot. Stores that already exist
// receive the values in a single patch; the others keep the snapshot
// until they are built.
func (r *Registry) Hydrate(snapshot map[string]map[string]any) error {
	var errs []error
	for _, id := range sortedKeys(snapshot) {
		values := snapshot[id]
		if s, ok := r.Store(id); ok {
			if err := s.SetState(values); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		r.mu.Lock()
		r.initial[id] = CloneMap(values)
		r.mu.Unlock()
	}
	return errors.Join(errs...)
}

// initialState returns the pending snapshot for id.
func (r *Registry) initialState(id string) (map[string]any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.initial[id]
	return v, ok
}

// State returns a plain copy of the whole state tree, including snapshots
// of stores not built yet. This is the hydration payload shape.
func (r *Registry) State() map[string]map[string]any {
	r.mu.RLock()
	entries := make(map[string]*stateEntry, len(r.state))
	for id, e := range r.state {
		entries[id] = e
	}
	out := make(map[string]map[string]any, len(r.state)+len(r.initial))
	for id, values := range r.initial {
		if _, live := r.state[id]; !live {
			out[id] = CloneMap(values)
		}
	}
	r.mu.RUnlock()

	for id, e := range entries {
		out[id] = e.snapshot(false)
	}
	return out
}

// Tick runs one scheduler tick: pending watchers of every store, then
// callbacks queued for the next tick.
func (r *Registry) Tick() {
	r.scope.Flush()
}

// IsDisposed reports whether the registry has been torn down.
func (r *Registry) IsDisposed() bool {
	return r.scope.IsDisposed()
}

// Dispose tears the registry down. Every store is disposed and no store
// can be built afterwards.
func (r *Registry) Dispose() {
	for _, id := range r.IDs() {
		if s, ok := r.Store(id); ok {
			s.Dispose()
		}
	}
	r.scope.Dispose()
	if Active() == r {
		SetActive(nil)
	}
}

// register adds a store and its state entry in one step. It returns the
// store already registered under id, if any.
func (r *Registry) register(s *Store) (*Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.stores[s.id]; ok {
		return existing, false
	}
	r.stores[s.id] = s
	r.state[s.id] = s.entry
	return s, true
}

// remove drops id if it still maps to s.
func (r *Registry) remove(id string, s *Store) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stores[id] == s {
		delete(r.stores, id)
		delete(r.state, id)
	}
}

func (r *Registry) consumeInitial(id string) {
	r.mu.Lock()
	delete(r.initial, id)
	r.mu.Unlock()
}
