package reactive

import (
	"runtime"
	"sync"
)

// TrackingContext holds the reactive state for a goroutine.
// Each goroutine has its own tracking context so stores can be driven from
// several goroutines (one per request, one per async action) without
// sharing the current owner or listener.
type TrackingContext struct {
	// currentOwner is the Owner that will own newly created memos/effects.
	currentOwner *Owner

	// currentListener is what's currently tracking dependencies.
	// nil means no tracking (reads don't create subscriptions).
	currentListener Listener

	// batchDepth tracks nested Batch() calls.
	batchDepth int

	// pendingUpdates accumulates listeners to notify when batch completes.
	pendingUpdates []Listener
}

// trackingContexts stores per-goroutine tracking contexts.
var trackingContexts sync.Map

// getGoroutineID returns a unique identifier for the current goroutine.
// This uses the runtime stack to extract the goroutine ID.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	// The stack starts with "goroutine <id> "
	var id uint64
	for i := 10; i < n; i++ {
		if buf[i] == ' ' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}

// getTrackingContext returns the tracking context for the current goroutine.
// If no context exists, creates a new one.
func getTrackingContext() *TrackingContext {
	gid := getGoroutineID()

	if ctx, ok := trackingContexts.Load(gid); ok {
		return ctx.(*TrackingContext)
	}

	ctx := &TrackingContext{}
	trackingContexts.Store(gid, ctx)
	return ctx
}

// lookupTrackingContext returns the current goroutine's context without
// creating one. Reads go through here so a goroutine that only reads
// signals leaves nothing behind.
func lookupTrackingContext() *TrackingContext {
	if ctx, ok := trackingContexts.Load(getGoroutineID()); ok {
		return ctx.(*TrackingContext)
	}
	return nil
}

func (c *TrackingContext) idle() bool {
	return c.currentOwner == nil && c.currentListener == nil &&
		c.batchDepth == 0 && len(c.pendingUpdates) == 0
}

// releaseIfIdle drops the goroutine's context once it is back to its zero
// state, so every WithOwner/WithListener/Batch pair cleans up after itself.
func releaseIfIdle(ctx *TrackingContext) {
	if ctx.idle() {
		trackingContexts.Delete(getGoroutineID())
	}
}

func getCurrentListener() Listener {
	if ctx := lookupTrackingContext(); ctx != nil {
		return ctx.currentListener
	}
	return nil
}

// setCurrentListener sets the current listener for dependency tracking.
// Returns the previous listener so it can be restored.
func setCurrentListener(l Listener) Listener {
	ctx := getTrackingContext()
	old := ctx.currentListener
	ctx.currentListener = l
	releaseIfIdle(ctx)
	return old
}

func getCurrentOwner() *Owner {
	if ctx := lookupTrackingContext(); ctx != nil {
		return ctx.currentOwner
	}
	return nil
}

// setCurrentOwner sets the current owner for memo/effect creation.
// Returns the previous owner so it can be restored.
func setCurrentOwner(o *Owner) *Owner {
	ctx := getTrackingContext()
	old := ctx.currentOwner
	ctx.currentOwner = o
	releaseIfIdle(ctx)
	return old
}

func getBatchDepth() int {
	if ctx := lookupTrackingContext(); ctx != nil {
		return ctx.batchDepth
	}
	return 0
}

func incrementBatchDepth() {
	getTrackingContext().batchDepth++
}

// decrementBatchDepth decreases the batch depth by 1.
// Returns true if batch depth reached 0 (batch complete).
func decrementBatchDepth() bool {
	ctx := getTrackingContext()
	ctx.batchDepth--
	done := ctx.batchDepth == 0
	releaseIfIdle(ctx)
	return done
}

func queuePendingUpdate(l Listener) {
	ctx := getTrackingContext()
	ctx.pendingUpdates = append(ctx.pendingUpdates, l)
}

func drainPendingUpdates() []Listener {
	ctx := lookupTrackingContext()
	if ctx == nil {
		return nil
	}
	updates := ctx.pendingUpdates
	ctx.pendingUpdates = nil
	releaseIfIdle(ctx)
	return updates
}

// TrackedGoroutines returns the number of goroutines currently holding a
// tracking context. A goroutine holds one only while it is inside
// WithOwner, WithListener or Batch, or after calling an internal setter
// without restoring it.
func TrackedGoroutines() int {
	n := 0
	trackingContexts.Range(func(any, any) bool {
		n++
		return true
	})
	return n
}

// CurrentOwner returns the owner of the calling goroutine, or nil.
func CurrentOwner() *Owner {
	return getCurrentOwner()
}

// WithOwner runs a function with the specified owner as the current owner.
// Memos, effects and cleanups created inside fn belong to owner.
//
// Example:
//
//	go func() {
//	    reactive.WithOwner(scope, func() {
//	        reactive.CreateEffect(func() reactive.Cleanup { ... })
//	    })
//	}()
func WithOwner(owner *Owner, fn func()) {
	old := setCurrentOwner(owner)
	defer setCurrentOwner(old)
	fn()
}

// WithListener runs a function with the specified listener for tracking.
func WithListener(l Listener, fn func()) {
	old := setCurrentListener(l)
	defer setCurrentListener(old)
	fn()
}

// ReleaseGoroutine removes the tracking context for the current goroutine.
// Long-lived worker goroutines should call it before exiting.
func ReleaseGoroutine() {
	trackingContexts.Delete(getGoroutineID())
}
