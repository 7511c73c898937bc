package store

import "sort"

// MergeInto merges patch into target and returns target.
//
// A key recurses only when target already owns it and both sides are plain
// maps (map[string]any). Everything else, including slices, typed values
// and reactive handles, replaces the target value wholesale.
func MergeInto(target, patch map[string]any) map[string]any {
	if target == nil {
		target = make(map[string]any, len(patch))
	}
	for key, value := range patch {
		sub, isMap := value.(map[string]any)
		current, owned := target[key]
		if owned && isMap {
			if existing, ok := current.(map[string]any); ok {
				target[key] = MergeInto(existing, sub)
				continue
			}
		}
		target[key] = value
	}
	return target
}

// Clone deep-copies plain data: nested map[string]any and []any are
// copied, every other value is returned as is.
func Clone(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return CloneMap(x)
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = Clone(item)
		}
		return out
	default:
		return v
	}
}

// CloneMap is Clone for a map. A nil map clones to nil.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = Clone(v)
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
