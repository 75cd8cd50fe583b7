package runtime

import (
	"fmt"

	"github.com/risor-io/risor/object"
)

// Conversion helpers for values handed back by scripts.

func extractMap(obj object.Object) (map[string]object.Object, error) {
	m, ok := obj.(*object.Map)
	if !ok {
		return nil, fmt.Errorf("expected map, got %s", obj.Type())
	}
	return m.Value(), nil
}

func extractList(obj object.Object) ([]object.Object, error) {
	l, ok := obj.(*object.List)
	if !ok {
		return nil, fmt.Errorf("expected list, got %s", obj.Type())
	}
	return l.Value(), nil
}

// getInt reads an integer field. Floats are truncated. Missing keys are
// reported so that a script cannot silently produce zero-valued blocks.
func getInt(m map[string]object.Object, key string) (int, error) {
	v, ok := m[key]
	if !ok {
		return 0, fmt.Errorf("missing %q", key)
	}
	n, err := toInt64(v)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", key, err)
	}
	return int(n), nil
}

// getIntDefault is getInt with a fallback for absent keys.
func getIntDefault(m map[string]object.Object, key string, def int) (int, error) {
	if _, ok := m[key]; !ok {
		return def, nil
	}
	return getInt(m, key)
}

func toInt64(obj object.Object) (int64, error) {
	if i, ok := obj.(*object.Int); ok {
		return i.Value(), nil
	}
	if f, ok := obj.(*object.Float); ok {
		return int64(f.Value()), nil
	}
	return 0, fmt.Errorf("expected int, got %s", obj.Type())
}

func toString(obj object.Object) (string, error) {
	if s, ok := obj.(*object.String); ok {
		return s.Value(), nil
	}
	return "", fmt.Errorf("expected string, got %s", obj.Type())
}

func stringList(items []string) *object.List {
	objs := make([]object.Object, len(items))
	for i, s := range items {
		objs[i] = object.NewString(s)
	}
	return object.NewList(objs)
}
