// Package reactive provides the fine-grained reactive core that stores are
// built on.
//
// Dependencies are tracked automatically at runtime: reading a signal while a
// memo computes or an effect runs subscribes that memo or effect to the
// signal's changes.
//
// # Core Types
//
// Signal[T] is a reactive value container:
//
//	count := reactive.NewSignal(0)
//	value := count.Get()  // Read (subscribes current listener)
//	count.Set(5)          // Write (notifies subscribers)
//	count.Update(func(n int) int { return n + 1 })
//
// Memo[T] is a cached derived computation:
//
//	doubled := reactive.NewMemo(func() int { return count.Get() * 2 })
//
// Effect runs side effects when dependencies change, and Watch calls back
// with old and new values:
//
//	reactive.Watch(count.Get, func(n, prev int) { ... })
//
// # Ownership and scheduling
//
// Owner is an ownership scope. Memos, effects and cleanups created while an
// owner is current (see WithOwner) are torn down by Owner.Dispose. Effects
// are deferred by default: a change queues them on their owner and they
// re-run on the next Owner.Flush of the tree root, followed by callbacks
// queued with NextTick. Sync effects and FlushSync watchers re-run inside the
// write instead.
//
// # Dependency injection
//
// Context[T] stores a value on an owner (Provide) and resolves it from any
// descendant (Use, Lookup).
//
// # Thread Safety
//
// Signals and memos are safe for concurrent use. Tracking state (current
// owner, current listener, batch depth) is kept per goroutine.
package reactive
