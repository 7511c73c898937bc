// Package store is a centralized reactive store registry built on
// pkg/reactive.
//
// A store is a named singleton holding state fields, getters and actions.
// Stores are declared once, without touching any registry, and built lazily
// the first time they are used against a Registry:
//
//	var useCounter = store.Define("counter", store.Options{
//	    State: func() any { return map[string]any{"count": 0} },
//	    Getters: map[string]store.GetterFunc{
//	        "double": func(s *store.Store) any { return store.Value[int](s, "count") * 2 },
//	    },
//	    Actions: map[string]store.ActionFunc{
//	        "increment": func(s *store.Store, _ ...any) (any, error) {
//	            return nil, s.Set("count", store.Value[int](s, "count")+1)
//	        },
//	    },
//	})
//
//	r := store.New()
//	r.Install(app)
//	counter := useCounter.Use(r)
//	counter.Call("increment")
//
// Setup stores return a tagged record instead of an options record:
//
//	var useTodos = store.DefineSetup("todos", func() *store.Fields {
//	    items := reactive.NewSignal([]Todo{})
//	    remaining := reactive.NewMemo(func() int { ... })
//	    return store.NewFields().
//	        State("items", items).
//	        Getter("remaining", remaining).
//	        Action("add", func(_ *store.Store, args ...any) (any, error) { ... })
//	})
//
// # Mutations and subscriptions
//
// Patch and PatchFunc change any number of fields and notify Subscribe
// callbacks exactly once. Direct writes (Set, or writing a signal returned
// by a setup function) are reported by a watcher, on the next
// Registry.Tick or immediately with FlushSync. OnAction observes every
// action call and can attach After and OnError hooks to it.
//
// # Hydration
//
// Registry.Hydrate seeds state before stores are built; Registry.State
// returns the same shape. Setup state fields take the snapshot value
// unless wrapped with SkipHydrate; options stores use the snapshot as
// their whole state and may refine it with Options.Hydrate.
//
// # Concurrency
//
// A registry is meant to be driven from one goroutine at a time. Servers
// serialize access (see pkg/server); asynchronous actions settle their
// Deferred result on their own goroutine.
package store
