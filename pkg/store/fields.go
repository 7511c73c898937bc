package store

// Kind classifies a store field.
type Kind uint8

const (
	// KindState is a mutable field mirrored into the registry state tree.
	KindState Kind = iota + 1
	// KindGetter is a derived, read-only field.
	KindGetter
	// KindAction is a wrapped method.
	KindAction
	// KindValue is any other property (setup values, plugin properties).
	KindValue
)

func (k Kind) String() string {
	switch k {
	case KindState:
		return "state"
	case KindGetter:
		return "getter"
	case KindAction:
		return "action"
	case KindValue:
		return "value"
	default:
		return "unknown"
	}
}

// Readable is an observable value. *reactive.Signal and *reactive.Memo
// implement it.
type Readable interface {
	// AnyGet returns the value and tracks the read.
	AnyGet() any
	// AnyPeek returns the value without tracking.
	AnyPeek() any
}

// Ref is a mutable observable value. *reactive.Signal implements it.
type Ref interface {
	Readable
	AnySet(v any) error
}

// skipHydrateRef marks a state field that keeps its setup value even when
// a hydration snapshot provides one.
type skipHydrateRef struct {
	Ref
}

// SkipHydrate marks ref so registry snapshots never overwrite it. The
// field is still part of the store state.
func SkipHydrate(ref Ref) Ref {
	return skipHydrateRef{Ref: ref}
}

func unwrapRef(ref Ref) (Ref, bool) {
	if s, ok := ref.(skipHydrateRef); ok {
		return s.Ref, false
	}
	return ref, true
}

// ActionFunc is a store method. s is always the canonical store, whatever
// alias the action was invoked through.
type ActionFunc func(s *Store, args ...any) (any, error)

// fieldSpec is one tagged entry returned by a setup function.
type fieldSpec struct {
	kind     Kind
	ref      Ref
	hydrate  bool
	readable Readable
	action   ActionFunc
	value    any
}

// Fields is the tagged record a setup function returns. Each entry says
// what it is, so nothing has to be inferred from the value's shape.
//
//	return store.NewFields().
//	    State("count", count).
//	    Getter("double", double).
//	    Action("increment", increment)
type Fields struct {
	order   []string
	entries map[string]fieldSpec
}

// NewFields returns an empty record.
func NewFields() *Fields {
	return &Fields{entries: make(map[string]fieldSpec)}
}

func (f *Fields) set(name string, entry fieldSpec) *Fields {
	if _, exists := f.entries[name]; !exists {
		f.order = append(f.order, name)
	}
	f.entries[name] = entry
	return f
}

// State adds a mutable state field. Wrap ref with SkipHydrate to keep it
// out of hydration.
func (f *Fields) State(name string, ref Ref) *Fields {
	inner, hydrate := unwrapRef(ref)
	return f.set(name, fieldSpec{kind: KindState, ref: inner, hydrate: hydrate})
}

// Getter adds a derived read-only field.
func (f *Fields) Getter(name string, r Readable) *Fields {
	return f.set(name, fieldSpec{kind: KindGetter, readable: r})
}

// Action adds a method. It is wrapped so action listeners observe it.
func (f *Fields) Action(name string, fn ActionFunc) *Fields {
	return f.set(name, fieldSpec{kind: KindAction, action: fn})
}

// Value adds a plain property. A Readable value is unwrapped on Get.
func (f *Fields) Value(name string, v any) *Fields {
	return f.set(name, fieldSpec{kind: KindValue, value: v})
}

// Names returns the field names in declaration order.
func (f *Fields) Names() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}
