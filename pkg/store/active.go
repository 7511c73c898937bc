package store

import (
	"sync/atomic"

	"github.com/vango-dev/vstore/pkg/reactive"
)

// active is the fallback registry for code running outside any owner that
// had a registry provided, e.g. actions called from a background goroutine.
var active atomic.Pointer[Registry]

// registryContext carries the installed registry down the owner tree.
var registryContext = reactive.CreateContext[*Registry](nil)

// SetActive makes r the fallback registry and returns it. Install and every
// action invocation call it; tests and servers may call it explicitly.
func SetActive(r *Registry) *Registry {
	active.Store(r)
	return r
}

// Active returns the fallback registry, or nil.
func Active() *Registry {
	return active.Load()
}

// Injected returns the registry provided to the current owner or one of
// its ancestors.
func Injected() (*Registry, bool) {
	r, ok := registryContext.Lookup()
	return r, ok && r != nil
}
