package reactive

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sync"
)

// signalBase provides type-erased subscriber management.
// It is embedded in Signal[T] and Memo[T] to share subscription logic.
type signalBase struct {
	id uint64

	// subs are the listeners subscribed to this signal.
	subs []Listener

	// subMu protects the subs slice.
	subMu sync.RWMutex
}

// subscribe adds a listener to this signal's subscribers.
// Deduplicates by listener ID to prevent double-subscription.
func (s *signalBase) subscribe(l Listener) {
	if l == nil {
		return
	}

	s.subMu.Lock()
	defer s.subMu.Unlock()

	lid := l.ID()
	for _, existing := range s.subs {
		if existing.ID() == lid {
			return
		}
	}

	s.subs = append(s.subs, l)
}

// unsubscribe removes a listener from this signal's subscribers.
func (s *signalBase) unsubscribe(l Listener) {
	if l == nil {
		return
	}

	s.subMu.Lock()
	defer s.subMu.Unlock()

	lid := l.ID()
	for i, existing := range s.subs {
		if existing.ID() == lid {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}

// subscriberCount returns the number of current subscribers.
func (s *signalBase) subscriberCount() int {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	return len(s.subs)
}

// notifySubscribers notifies all subscribers that this signal changed.
// Uses copy-before-notify pattern to avoid holding locks during notification.
func (s *signalBase) notifySubscribers() {
	s.subMu.RLock()
	subs := make([]Listener, len(s.subs))
	copy(subs, s.subs)
	s.subMu.RUnlock()

	if getBatchDepth() > 0 {
		for _, sub := range subs {
			queuePendingUpdate(sub)
		}
		return
	}

	for _, sub := range subs {
		sub.MarkDirty()
	}
}

// track subscribes the current listener, if any, to this base.
func (s *signalBase) track() {
	listener := getCurrentListener()
	if listener == nil {
		return
	}
	s.subscribe(listener)
	if src, ok := listener.(sourceTracker); ok {
		src.addSource(s)
	}
}

// sourceTracker is implemented by listeners that remember their sources
// so they can unsubscribe before re-running.
type sourceTracker interface {
	Listener
	addSource(source *signalBase)
}

// Signal is a reactive value container.
// Reading a Signal's value during a tracked context (memo computation or
// effect execution) automatically subscribes the current listener to
// receive notifications when the value changes.
type Signal[T any] struct {
	base signalBase

	value T
	mu    sync.RWMutex

	// equal is the equality function used to determine if the value changed.
	// If nil, uses default equality checking.
	equal func(T, T) bool
}

// NewSignal creates a new signal with the given initial value.
func NewSignal[T any](initial T) *Signal[T] {
	return &Signal[T]{
		base:  signalBase{id: nextID()},
		value: initial,
	}
}

// Get returns the current value and subscribes the current listener.
func (s *Signal[T]) Get() T {
	s.mu.RLock()
	value := s.value
	s.mu.RUnlock()

	// Track after releasing the value lock to prevent deadlock.
	s.base.track()
	return value
}

// Peek returns the current value without subscribing.
func (s *Signal[T]) Peek() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set updates the signal's value and notifies subscribers if the value changed.
func (s *Signal[T]) Set(value T) {
	s.mu.Lock()
	changed := !s.equals(s.value, value)
	if changed {
		s.value = value
	}
	s.mu.Unlock()

	if changed {
		s.base.notifySubscribers()
	}
}

// Update atomically reads and updates the signal's value.
func (s *Signal[T]) Update(fn func(T) T) {
	s.mu.Lock()
	oldValue := s.value
	newValue := fn(oldValue)
	changed := !s.equals(oldValue, newValue)
	if changed {
		s.value = newValue
	}
	s.mu.Unlock()

	if changed {
		s.base.notifySubscribers()
	}
}

// Trigger notifies subscribers without changing the value.
// Use it after mutating a map or slice held by the signal in place.
func (s *Signal[T]) Trigger() {
	s.base.notifySubscribers()
}

// WithEquals returns the signal configured with a custom equality function.
func (s *Signal[T]) WithEquals(fn func(T, T) bool) *Signal[T] {
	s.equal = fn
	return s
}

// ID returns the unique identifier for this signal.
func (s *Signal[T]) ID() uint64 {
	return s.base.id
}

// AnyGet is Get without the type parameter.
func (s *Signal[T]) AnyGet() any { return s.Get() }

// AnyPeek is Peek without the type parameter.
func (s *Signal[T]) AnyPeek() any { return s.Peek() }

// AnySet assigns v, converting it to T when it arrives in a different
// representation (a decoded JSON float64 for an int signal, a map for a
// struct signal). A nil v stores the zero value.
func (s *Signal[T]) AnySet(v any) error {
	converted, err := Convert[T](v)
	if err != nil {
		return err
	}
	s.Set(converted)
	return nil
}

func (s *Signal[T]) equals(a, b T) bool {
	if s.equal != nil {
		return s.equal(a, b)
	}
	return defaultEquals(a, b)
}

// Convert turns v into a T. Values already of type T are returned as is;
// anything else goes through a JSON round trip.
func Convert[T any](v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	if tv, ok := v.(T); ok {
		return tv, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return zero, fmt.Errorf("encode %T: %w", v, err)
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return zero, fmt.Errorf("convert %T to %T: %w", v, zero, err)
	}
	return out, nil
}

// defaultEquals provides type-appropriate equality checking.
// Uses == for common comparable types and reflect.DeepEqual for others.
// Both values may carry different dynamic types when T is an interface.
func defaultEquals[T any](a, b T) bool {
	av, bv := any(a), any(b)
	switch x := av.(type) {
	case int:
		return sameComparable(x, bv)
	case int8:
		return sameComparable(x, bv)
	case int16:
		return sameComparable(x, bv)
	case int32:
		return sameComparable(x, bv)
	case int64:
		return sameComparable(x, bv)
	case uint:
		return sameComparable(x, bv)
	case uint8:
		return sameComparable(x, bv)
	case uint16:
		return sameComparable(x, bv)
	case uint32:
		return sameComparable(x, bv)
	case uint64:
		return sameComparable(x, bv)
	case float32:
		return sameComparable(x, bv)
	case float64:
		return sameComparable(x, bv)
	case string:
		return sameComparable(x, bv)
	case bool:
		return sameComparable(x, bv)
	default:
		return reflect.DeepEqual(av, bv)
	}
}

func sameComparable[V comparable](a V, b any) bool {
	bv, ok := b.(V)
	return ok && a == bv
}
