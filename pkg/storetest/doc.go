// Package storetest provides testing helpers for stores.
//
// # Quick Start
//
//	func TestCheckout(t *testing.T) {
//	    r := storetest.NewRegistry(t)
//	    cart := demo.Cart.Use(r)
//	    rec := storetest.Record(cart)
//
//	    cart.Call("add", "apple", 1.5)
//	    storetest.ExpectState(t, cart, map[string]any{"lines": ..., "budget": 100})
//	    rec.ExpectTypes(t, store.MutationDirect)
//	}
//
// # Restarts
//
// Restart simulates a process restart: it saves the registry state to a
// snapshot backend and returns a fresh registry hydrated from it.
//
//	r2 := storetest.Restart(t, r, persist.NewMemoryStore())
//	cart2 := demo.Cart.Use(r2)
package storetest
