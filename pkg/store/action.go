package store

import (
	"slices"
	"sync"
)

// ActionContext is passed to action listeners once per invocation. A
// listener registers per-call hooks on it with After and OnError.
type ActionContext struct {
	Name  string
	Args  []any
	Store *Store

	mu      sync.Mutex
	after   []func(result any) any
	onError []func(err error)
}

// After registers fn to run when the action succeeds. For a plain result,
// a non-nil return value replaces the action's result; when several hooks
// return one, the last registered wins. For a *Deferred result the hooks
// only observe the resolved value.
func (c *ActionContext) After(fn func(result any) any) {
	c.mu.Lock()
	c.after = append(c.after, fn)
	c.mu.Unlock()
}

// OnError registers fn to run when the action fails, panics or its
// *Deferred result is rejected. The failure still reaches the caller.
func (c *ActionContext) OnError(fn func(err error)) {
	c.mu.Lock()
	c.onError = append(c.onError, fn)
	c.mu.Unlock()
}

func (c *ActionContext) succeed(result any) any {
	c.mu.Lock()
	hooks := slices.Clone(c.after)
	c.mu.Unlock()

	out := result
	for _, fn := range hooks {
		if replaced := fn(result); replaced != nil {
			out = replaced
		}
	}
	return out
}

func (c *ActionContext) fail(err error) {
	c.mu.Lock()
	hooks := slices.Clone(c.onError)
	c.mu.Unlock()

	for _, fn := range hooks {
		fn(err)
	}
}

// ActionListener observes action invocations.
type ActionListener func(ctx *ActionContext)

// OnAction registers cb to be called before every action of the store
// runs, and returns its remover. Unless Detached is given, the listener is
// removed when the current owner is disposed.
func (s *Store) OnAction(cb ActionListener, opts ...SubscribeOption) (remove func()) {
	var cfg subscribeConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return s.actionSubscriptions.add(cb, cfg.detached, nil)
}

// wrapAction returns fn instrumented for action listeners. The returned
// function always runs fn against s, whatever store it is given.
func (s *Store) wrapAction(name string, fn ActionFunc) ActionFunc {
	return func(_ *Store, args ...any) (result any, err error) {
		SetActive(s.registry)

		ctx := &ActionContext{Name: name, Args: args, Store: s}
		s.actionSubscriptions.each(func(l ActionListener) {
			l(ctx)
		})

		result, err = func() (any, error) {
			defer func() {
				if rec := recover(); rec != nil {
					ctx.fail(panicError(rec))
					panic(rec)
				}
			}()
			return fn(s, args...)
		}()
		if err != nil {
			ctx.fail(err)
			return result, err
		}

		if d, ok := result.(*Deferred); ok {
			chained := NewDeferred()
			d.onSettle(func(value any, err error) {
				if err != nil {
					ctx.fail(err)
					chained.Reject(err)
					return
				}
				ctx.succeed(value)
				chained.Resolve(value)
			})
			return chained, nil
		}

		return ctx.succeed(result), nil
	}
}
