// Package server exposes a store registry over HTTP and WebSocket.
//
// Routes:
//
//	GET    /stores                         defined store ids
//	GET    /state                          the whole state tree
//	GET    /state/{id}                     one store's state
//	PATCH  /state/{id}                     merge a partial state
//	POST   /stores/{id}/actions/{name}     call an action ({"args": [...]})
//	GET    /ws                             mutation stream
//
// A registry is driven from one goroutine at a time, so every request
// takes the server lock, does its work and runs Registry.Tick before
// releasing it. Long-running (Deferred) action results are awaited
// after the lock is released.
//
// WebSocket clients first receive a "snapshot" frame with the whole state
// tree, then one frame per mutation of any defined store. A client that
// does not keep up has frames dropped rather than stalling the registry.
package server
