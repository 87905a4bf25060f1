package property

import (
	"fmt"
	"sort"
)

// FromMap builds elements from a nested map.
//
// Nested maps become containers, []any becomes an array container named by
// index, scalars become leaves and nil becomes a NULL leaf. Keys are sorted
// so the result is deterministic.
func FromMap(m map[string]any) ([]*Element, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]*Element, 0, len(m))
	for _, k := range keys {
		e, err := fromAny(k, m[k])
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func fromAny(name string, x any) (*Element, error) {
	switch t := x.(type) {
	case map[string]any:
		children, err := FromMap(t)
		if err != nil {
			return nil, err
		}
		return Container(name, children...), nil
	case []any:
		arr := Array(name)
		for i, item := range t {
			child, err := fromAny(Index(i), item)
			if err != nil {
				return nil, err
			}
			arr.Elements = append(arr.Elements, child)
		}
		return arr, nil
	default:
		v, err := ValueOf(x)
		if err != nil {
			return nil, fmt.Errorf("property %q: %w", name, err)
		}
		return Leaf(name, v), nil
	}
}

// ToMap converts elements into a nested map.
//
// Leaves become their Go value (nil for NULL), containers and arrays become
// maps keyed by child name and placeholders become nil.
func ToMap(elems []*Element) map[string]any {
	out := make(map[string]any, len(elems))
	for _, e := range elems {
		switch {
		case e.Value != nil:
			out[e.Name] = e.Value.Interface()
		case len(e.Elements) > 0:
			out[e.Name] = ToMap(e.Elements)
		case e.Array:
			out[e.Name] = map[string]any{}
		default:
			out[e.Name] = nil
		}
	}
	return out
}
