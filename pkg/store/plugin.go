package store

// Plugin extends every store built after it is registered. It runs inside
// the store scope, so memos and effects it creates are stopped with the
// store. The returned properties are added to the store, replacing members
// with the same name.
type Plugin func(ctx PluginContext) map[string]any

// PluginContext is what a plugin receives.
type PluginContext struct {
	Store    *Store
	App      App
	Registry *Registry
	Options  PluginOptions
}

// PluginOptions describes how the store was defined.
type PluginOptions struct {
	ID string
	// Setup is true for stores defined with DefineSetup.
	Setup bool
	// Actions are the unwrapped actions, by name.
	Actions map[string]ActionFunc
	// Extra holds custom definition options (Options.Extra, WithExtra).
	Extra map[string]any
}

// Flag returns Extra[key] as a bool and whether it was set to one.
func (o PluginOptions) Flag(key string) (value, ok bool) {
	value, ok = o.Extra[key].(bool)
	return value, ok
}

// mergeProperties adds plugin properties to the store. A property named
// like a state field is written into that field unless it is itself a Ref.
func (s *Store) mergeProperties(props map[string]any) {
	for _, name := range sortedKeys(props) {
		value := props[name]
		if f, ok := s.field(name); ok && f.kind == KindState {
			if _, isRef := value.(Ref); !isRef {
				if err := f.ref.AnySet(value); err != nil {
					s.logger.Warn("plugin property does not fit state field", "field", name, "error", err)
				}
				continue
			}
		}
		s.setField(name, &field{kind: KindValue, value: value})
	}
}
