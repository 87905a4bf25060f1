package property

import (
	"fmt"
	"strconv"
)

// Element is one node of a property tree.
//
// Exactly one of the following holds:
//   - Value != nil: a leaf
//   - len(Elements) > 0: a container
//   - neither: a query placeholder (or an empty container in a response)
type Element struct {
	Name     string
	Value    *Value
	Elements []*Element

	// Array marks a container whose children are named by decimal index.
	// It is local metadata and is not transmitted.
	Array bool
}

// Leaf returns a leaf element.
func Leaf(name string, v Value) *Element {
	return &Element{Name: name, Value: &v}
}

// Container returns a container element with the given children.
func Container(name string, children ...*Element) *Element {
	return &Element{Name: name, Elements: children}
}

// Array returns an array container. Children should be named by index, see Index.
func Array(name string, children ...*Element) *Element {
	return &Element{Name: name, Elements: children, Array: true}
}

// Placeholder returns a query node that requests the named subtree in full.
func Placeholder(name string) *Element {
	return &Element{Name: name}
}

// Index formats an array index as a child name.
func Index(i int) string {
	return strconv.Itoa(i)
}

// IsLeaf reports whether e carries a value.
func (e *Element) IsLeaf() bool { return e.Value != nil }

// IsContainer reports whether e carries children.
func (e *Element) IsContainer() bool { return e.Value == nil && len(e.Elements) > 0 }

// IsPlaceholder reports whether e carries neither value nor children.
func (e *Element) IsPlaceholder() bool { return e.Value == nil && len(e.Elements) == 0 }

// Child returns the first child named name, or nil.
func (e *Element) Child(name string) *Element {
	for _, c := range e.Elements {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Lookup follows path from e and returns the element found, or nil.
func (e *Element) Lookup(path ...string) *Element {
	cur := e
	for _, name := range path {
		if cur == nil {
			return nil
		}
		cur = cur.Child(name)
	}
	return cur
}

// Add appends children and returns e for chaining.
func (e *Element) Add(children ...*Element) *Element {
	e.Elements = append(e.Elements, children...)
	return e
}

// Clone returns a deep copy of e.
func (e *Element) Clone() *Element {
	if e == nil {
		return nil
	}
	out := &Element{Name: e.Name, Array: e.Array}
	if e.Value != nil {
		v := *e.Value
		if v.raw != nil {
			v.raw = append([]byte(nil), v.raw...)
		}
		out.Value = &v
	}
	if len(e.Elements) > 0 {
		out.Elements = make([]*Element, len(e.Elements))
		for i, c := range e.Elements {
			out.Elements[i] = c.Clone()
		}
	}
	return out
}

// Validate checks that no element in the tree is both leaf and container.
func (e *Element) Validate() error {
	return validate(e, nil)
}

func validate(e *Element, path []string) error {
	if e.Value != nil && len(e.Elements) > 0 {
		return pathError(path, e.Name, ErrMalformed)
	}
	sub := append(append([]string(nil), path...), e.Name)
	for _, c := range e.Elements {
		if err := validate(c, sub); err != nil {
			return err
		}
	}
	return nil
}

// Equal reports whether two trees have the same names, values and order.
func (e *Element) Equal(o *Element) bool {
	if e == nil || o == nil {
		return e == o
	}
	if e.Name != o.Name || len(e.Elements) != len(o.Elements) {
		return false
	}
	if (e.Value == nil) != (o.Value == nil) {
		return false
	}
	if e.Value != nil && !e.Value.Equal(*o.Value) {
		return false
	}
	for i := range e.Elements {
		if !e.Elements[i].Equal(o.Elements[i]) {
			return false
		}
	}
	return true
}

// String renders the tree on one line for logs.
func (e *Element) String() string {
	if e == nil {
		return "<nil>"
	}
	if e.Value != nil {
		return fmt.Sprintf("%s=%s", e.Name, e.Value)
	}
	s := e.Name + "{"
	for i, c := range e.Elements {
		if i > 0 {
			s += " "
		}
		s += c.String()
	}
	return s + "}"
}

// CountLeaves returns the number of leaves in elems.
func CountLeaves(elems []*Element) int {
	n := 0
	for _, e := range elems {
		if e.Value != nil {
			n++
			continue
		}
		n += CountLeaves(e.Elements)
	}
	return n
}
