package persist

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vango-dev/vstore/pkg/store"
)

// ExtraKey is the definition option that opts a store out of persistence:
//
//	store.DefineSetup("session", setup, store.WithExtra(persist.ExtraKey, false))
const ExtraKey = "persist"

// Persister writes a registry's state tree to a SnapshotStore.
//
// Installed with Registry.Use(p.Plugin()), it watches every store and
// saves after each mutation. Saves are rate limited: a mutation that
// arrives while the limiter is exhausted only marks the snapshot dirty,
// and the next allowed save, Flush, Run or Close writes it.
type Persister struct {
	backend SnapshotStore
	key     string
	limiter *rate.Limiter
	timeout time.Duration
	logger  *slog.Logger
	locker  sync.Locker

	mu       sync.Mutex
	registry *store.Registry
	skipped  map[string]bool
	dirty    bool
	saves    int
	closed   bool
}

// PersisterOption configures a Persister.
type PersisterOption func(*Persister)

// WithRate allows one save per interval, with the given burst.
// Default: one save per second, burst 1.
func WithRate(interval time.Duration, burst int) PersisterOption {
	return func(p *Persister) {
		if interval <= 0 {
			p.limiter = rate.NewLimiter(rate.Inf, burst)
			return
		}
		p.limiter = rate.NewLimiter(rate.Every(interval), burst)
	}
}

// WithSaveTimeout bounds each backend write. Default: 5 seconds.
func WithSaveTimeout(d time.Duration) PersisterOption {
	return func(p *Persister) {
		p.timeout = d
	}
}

// WithPersistLogger sets the logger. Default: slog.Default().
func WithPersistLogger(l *slog.Logger) PersisterOption {
	return func(p *Persister) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithLocker makes background flushes hold l while reading registry state.
// Pass the lock that serializes registry access (see pkg/server).
func WithLocker(l sync.Locker) PersisterOption {
	return func(p *Persister) {
		p.locker = l
	}
}

// NewPersister creates a persister writing snapshots under key.
func NewPersister(backend SnapshotStore, key string, opts ...PersisterOption) *Persister {
	p := &Persister{
		backend: backend,
		key:     key,
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		timeout: 5 * time.Second,
		logger:  slog.Default(),
		skipped: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plugin returns the store plugin that subscribes the persister to every
// store. Stores defined with Extra[ExtraKey] == false are left out of
// snapshots.
func (p *Persister) Plugin() store.Plugin {
	return func(ctx store.PluginContext) map[string]any {
		p.mu.Lock()
		if p.registry == nil {
			p.registry = ctx.Registry
		}
		if enabled, ok := ctx.Options.Flag(ExtraKey); ok && !enabled {
			p.skipped[ctx.Options.ID] = true
			p.mu.Unlock()
			return nil
		}
		delete(p.skipped, ctx.Options.ID)
		p.mu.Unlock()

		ctx.Store.Subscribe(func(store.Mutation, map[string]any) {
			p.changed()
		}, store.Detached())
		return nil
	}
}

func (p *Persister) changed() {
	if p.limiter.Allow() {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		defer cancel()
		if err := p.save(ctx); err != nil {
			p.logger.Error("snapshot save failed", "key", p.key, "error", err)
		}
		return
	}
	p.mu.Lock()
	p.dirty = true
	p.mu.Unlock()
}

// snapshot returns the persisted part of the registry state.
func (p *Persister) snapshot() map[string]map[string]any {
	p.mu.Lock()
	r := p.registry
	skipped := make(map[string]bool, len(p.skipped))
	for id := range p.skipped {
		skipped[id] = true
	}
	p.mu.Unlock()

	if r == nil {
		return nil
	}
	state := r.State()
	for id := range skipped {
		delete(state, id)
	}
	return state
}

func (p *Persister) save(ctx context.Context) error {
	data, err := Encode(p.snapshot())
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.dirty = false
	p.mu.Unlock()

	if err := p.backend.Save(ctx, p.key, data); err != nil {
		p.mu.Lock()
		p.dirty = true
		p.mu.Unlock()
		return err
	}

	p.mu.Lock()
	p.saves++
	p.mu.Unlock()
	p.logger.Debug("snapshot saved", "key", p.key, "bytes", len(data))
	return nil
}

// Dirty reports whether a mutation has not been written yet.
func (p *Persister) Dirty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dirty
}

// Saves returns the number of successful writes.
func (p *Persister) Saves() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saves
}

// Flush writes the current state now, ignoring the rate limit.
func (p *Persister) Flush(ctx context.Context) error {
	if p.locker != nil {
		p.locker.Lock()
		defer p.locker.Unlock()
	}
	return p.save(ctx)
}

// Run flushes pending changes every interval until ctx is done.
func (p *Persister) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !p.Dirty() {
				continue
			}
			if err := p.Flush(ctx); err != nil {
				p.logger.Error("snapshot flush failed", "key", p.key, "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Restore loads the last snapshot into r with Registry.Hydrate. It
// reports whether a snapshot was found.
func (p *Persister) Restore(ctx context.Context, r *store.Registry) (bool, error) {
	data, err := p.backend.Load(ctx, p.key)
	if err != nil {
		return false, err
	}
	if data == nil {
		return false, nil
	}
	state, err := Decode(data)
	if err != nil {
		return false, err
	}

	p.mu.Lock()
	if p.registry == nil {
		p.registry = r
	}
	p.mu.Unlock()

	if err := r.Hydrate(state); err != nil {
		return true, err
	}
	p.logger.Info("snapshot restored", "key", p.key, "stores", len(state))
	return true, nil
}

// Close writes pending changes and closes the backend. Calling it again
// does nothing.
func (p *Persister) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	dirty := p.dirty
	p.mu.Unlock()

	var flushErr error
	if dirty {
		flushErr = p.Flush(ctx)
	}
	if err := p.backend.Close(); err != nil {
		return err
	}
	return flushErr
}
