package property

// WritableFunc decides whether the leaf at path may be written by a set request.
// A nil WritableFunc allows every existing leaf.
type WritableFunc func(path []string) bool

// Merge writes the leaves of patch into tree.
//
// Merge is a partial update: leaves not named in patch, and whole subtrees
// not named in patch, keep their values. Placeholders in patch are ignored.
// The patch is validated in full before the first write, so on error the
// tree is unchanged.
//
// Parameters:
//   - tree: Root container of the entity, modified in place
//   - patch: Top-level elements of the set request
//   - writable: Per-path write permission, nil allows all
//
// Returns:
//   - error: ErrMissingData when patch has no leaves; otherwise a *PathError
//     wrapping ErrNotFound, ErrNoContentForArray, ErrInvalidValueType,
//     ErrForbidden or ErrMalformed
func Merge(tree *Element, patch []*Element, writable WritableFunc) error {
	if CountLeaves(patch) == 0 {
		return ErrMissingData
	}
	for _, p := range patch {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	if err := check(tree, patch, nil, writable); err != nil {
		return err
	}
	apply(tree, patch)
	return nil
}

func check(node *Element, patch []*Element, path []string, writable WritableFunc) error {
	for _, p := range patch {
		if p.IsPlaceholder() {
			continue
		}
		target := node.Child(p.Name)
		if target == nil {
			if node.Array {
				return pathError(path, p.Name, ErrNoContentForArray)
			}
			return pathError(path, p.Name, ErrNotFound)
		}

		if p.Value != nil {
			if target.Value == nil {
				return pathError(path, p.Name, ErrInvalidValueType)
			}
			if !p.Value.IsNull() && p.Value.Kind() != target.Value.Kind() {
				return pathError(path, p.Name, ErrInvalidValueType)
			}
			full := append(append([]string(nil), path...), p.Name)
			if writable != nil && !writable(full) {
				return &PathError{Path: full, Err: ErrForbidden}
			}
			continue
		}

		if target.Value != nil {
			return pathError(path, p.Name, ErrInvalidValueType)
		}
		sub := append(append([]string(nil), path...), p.Name)
		if err := check(target, p.Elements, sub, writable); err != nil {
			return err
		}
	}
	return nil
}

func apply(node *Element, patch []*Element) {
	for _, p := range patch {
		if p.IsPlaceholder() {
			continue
		}
		target := node.Child(p.Name)
		if p.Value != nil {
			v := *p.Value
			if v.IsNull() {
				v = Null(target.Value.Kind())
			}
			target.Value = &v
			continue
		}
		apply(target, p.Elements)
	}
}

// Written returns the parts of a merged tree that patch wrote: every leaf
// patch names, with the container path leading to it, and nothing else.
// Sources commit this instead of the whole tree so that fields changed
// elsewhere since the snapshot are left alone.
func Written(tree *Element, patch []*Element) *Element {
	return &Element{Name: tree.Name, Array: tree.Array, Elements: written(tree, patch)}
}

func written(node *Element, patch []*Element) []*Element {
	var out []*Element
	for _, p := range patch {
		if p.IsPlaceholder() {
			continue
		}
		target := node.Child(p.Name)
		if target == nil {
			continue
		}
		if p.Value != nil {
			out = append(out, target.Clone())
			continue
		}
		out = append(out, &Element{Name: target.Name, Array: target.Array, Elements: written(target, p.Elements)})
	}
	return out
}
