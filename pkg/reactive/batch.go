package reactive

// Batch groups multiple signal updates into a single notification phase.
// All signal updates within the batch function are collected, deduplicated,
// and then all affected listeners are notified once when the batch completes.
//
// Example:
//
//	reactive.Batch(func() {
//	    first.Set("Ada")
//	    last.Set("Lovelace")
//	})
func Batch(fn func()) {
	incrementBatchDepth()

	defer func() {
		if decrementBatchDepth() {
			processPendingUpdates()
		}
	}()

	fn()
}

// processPendingUpdates notifies all queued listeners after a batch completes.
// Listeners are deduplicated by ID so each is notified at most once.
func processPendingUpdates() {
	updates := drainPendingUpdates()
	if len(updates) == 0 {
		return
	}

	seen := make(map[uint64]bool, len(updates))
	unique := make([]Listener, 0, len(updates))

	for _, listener := range updates {
		id := listener.ID()
		if !seen[id] {
			seen[id] = true
			unique = append(unique, listener)
		}
	}

	for _, listener := range unique {
		listener.MarkDirty()
	}
}

// Untracked runs a function without tracking any signal reads.
func Untracked(fn func()) {
	old := setCurrentListener(nil)
	defer setCurrentListener(old)
	fn()
}

// UntrackedGet reads a signal's value without creating a dependency.
// Equivalent to s.Peek().
func UntrackedGet[T any](s *Signal[T]) T {
	return s.Peek()
}
