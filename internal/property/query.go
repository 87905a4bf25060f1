package property

import "strconv"

// Result is the outcome of a Query.
//
// Elements mirrors the shape of the request. A path that could not be
// resolved appears as a bare named element (no value, no children) and is
// listed in Errors with its reason.
type Result struct {
	Elements []*Element
	Errors   []*PathError
}

// OK reports whether every requested path was resolved.
func (r Result) OK() bool { return len(r.Errors) == 0 }

// Query resolves query against tree and returns the matching subtrees.
//
// tree is the root container of one addressable entity; its children are
// the top-level properties. An empty query returns every property.
//
// The returned elements are deep copies and can be handed to the encoder
// without holding any lock.
func Query(tree *Element, query []*Element) Result {
	var res Result
	res.Elements = queryLevel(tree, query, nil, &res)
	return res
}

func queryLevel(node *Element, query []*Element, path []string, res *Result) []*Element {
	if len(query) == 0 {
		return cloneChildren(node)
	}

	out := make([]*Element, 0, len(query))
	for _, q := range query {
		if q.Name == "" {
			out = append(out, wildcard(node, q, path, res)...)
			continue
		}

		child := node.Child(q.Name)
		if child == nil {
			reason := ErrNotFound
			if node.Array {
				reason = ErrNoContentForArray
			}
			res.Errors = append(res.Errors, pathError(path, q.Name, reason))
			out = append(out, &Element{Name: q.Name})
			continue
		}

		out = append(out, descend(child, q, path, res))
	}
	return out
}

// wildcard expands an empty-named query node over every child of node.
func wildcard(node *Element, q *Element, path []string, res *Result) []*Element {
	out := make([]*Element, 0, len(node.Elements))
	for _, child := range node.Elements {
		out = append(out, descend(child, q, path, res))
	}
	return out
}

// descend returns child shaped by the sub-query carried in q.
func descend(child, q *Element, path []string, res *Result) *Element {
	if len(q.Elements) == 0 || child.Value != nil {
		return child.Clone()
	}
	sub := append(append([]string(nil), path...), child.Name)
	if child.Array {
		if err := checkIndices(q.Elements, sub); err != nil {
			res.Errors = append(res.Errors, err)
			return &Element{Name: child.Name, Array: true}
		}
	}
	return &Element{
		Name:     child.Name,
		Array:    child.Array,
		Elements: queryLevel(child, q.Elements, sub, res),
	}
}

// checkIndices rejects array queries that name something other than an index.
func checkIndices(query []*Element, path []string) *PathError {
	for _, q := range query {
		if q.Name == "" {
			continue
		}
		if _, err := strconv.ParseUint(q.Name, 10, 32); err != nil {
			return pathError(path, q.Name, ErrNoContentForArray)
		}
	}
	return nil
}

func cloneChildren(node *Element) []*Element {
	out := make([]*Element, len(node.Elements))
	for i, c := range node.Elements {
		out[i] = c.Clone()
	}
	return out
}
