package middleware

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vango-dev/vstore/pkg/reactive"
	"github.com/vango-dev/vstore/pkg/store"
)

var errCheckout = errors.New("payment declined")

func counterDefinition() *store.Definition {
	return store.Define("counter", store.Options{
		State: func() any { return map[string]any{"count": 0} },
		Actions: map[string]store.ActionFunc{
			"increment": func(s *store.Store, _ ...any) (any, error) {
				return nil, s.Set("count", store.Value[int](s, "count")+1)
			},
			"checkout": func(*store.Store, ...any) (any, error) {
				return nil, errCheckout
			},
			"explode": func(*store.Store, ...any) (any, error) {
				panic("boom")
			},
			"missing": func(s *store.Store, _ ...any) (any, error) {
				return s.Call("nope")
			},
			"later": func(_ *store.Store, args ...any) (any, error) {
				return store.Resolved(args), nil
			},
		},
	})
}

func newRegistry(t *testing.T, plugins ...store.Plugin) *store.Registry {
	t.Helper()
	r := store.New()
	require.NoError(t, r.Install(reactive.NewOwner(nil)))
	for _, p := range plugins {
		r.Use(p)
	}
	t.Cleanup(func() {
		r.Dispose()
		store.SetActive(nil)
	})
	return r
}
