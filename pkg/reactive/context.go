package reactive

// ValueHolder is anything that can hold injected values.
// *Owner implements it.
type ValueHolder interface {
	SetValue(key, value any)
}

// SetValue sets a value on this Owner, visible to all descendants.
func (o *Owner) SetValue(key, value any) {
	o.valuesMu.Lock()
	defer o.valuesMu.Unlock()

	if o.values == nil {
		o.values = make(map[any]any)
	}
	o.values[key] = value
}

// GetValue retrieves a value from this Owner or its parents.
func (o *Owner) GetValue(key any) any {
	o.valuesMu.RLock()
	if o.values != nil {
		if val, ok := o.values[key]; ok {
			o.valuesMu.RUnlock()
			return val
		}
	}
	o.valuesMu.RUnlock()

	if o.parent != nil {
		return o.parent.GetValue(key)
	}

	return nil
}

// Context provides dependency injection through the owner tree.
// Create a context with CreateContext, provide a value on an owner with
// Provide, and read it from any descendant with Use.
//
// Example:
//
//	var ThemeContext = reactive.CreateContext("light")
//
//	ThemeContext.Provide(root, "dark")
//	reactive.WithOwner(reactive.NewOwner(root), func() {
//	    theme := ThemeContext.Use() // "dark"
//	})
type Context[T any] struct {
	key          any
	defaultValue T
}

// contextKey wraps Context to create a unique key type
type contextKey[T any] struct {
	ctx *Context[T]
}

// CreateContext creates a new context with the given default value.
func CreateContext[T any](defaultValue T) *Context[T] {
	ctx := &Context[T]{
		defaultValue: defaultValue,
	}
	ctx.key = contextKey[T]{ctx: ctx}
	return ctx
}

// Provide stores value on target for its descendants.
func (c *Context[T]) Provide(target ValueHolder, value T) {
	if target != nil {
		target.SetValue(c.key, value)
	}
}

// Lookup returns the value provided to the current owner or one of its
// ancestors, and whether one was found.
func (c *Context[T]) Lookup() (T, bool) {
	return c.LookupFrom(getCurrentOwner())
}

// LookupFrom is Lookup starting at an explicit owner.
func (c *Context[T]) LookupFrom(owner *Owner) (T, bool) {
	if owner != nil {
		if value := owner.GetValue(c.key); value != nil {
			if typed, ok := value.(T); ok {
				return typed, true
			}
		}
	}
	var zero T
	return zero, false
}

// Use returns the provided value, or the default value when no ancestor
// provides one.
func (c *Context[T]) Use() T {
	if v, ok := c.Lookup(); ok {
		return v
	}
	return c.defaultValue
}

// Default returns the default value for this context.
func (c *Context[T]) Default() T {
	return c.defaultValue
}
