package property

import (
	"errors"
	"strings"
)

// Sentinel errors for property access. Each maps onto one protocol result code.
var (
	// ErrNotFound indicates the path or the addressed dSUID does not exist.
	ErrNotFound = errors.New("property: not found")

	// ErrNoContentForArray indicates a name that is not a valid index of an array property.
	ErrNoContentForArray = errors.New("property: no content for array")

	// ErrInvalidValueType indicates a value whose type differs from the target leaf.
	ErrInvalidValueType = errors.New("property: invalid value type")

	// ErrMissingData indicates a set request that carries no leaves.
	ErrMissingData = errors.New("property: missing data")

	// ErrForbidden indicates a write to a read-only property.
	ErrForbidden = errors.New("property: forbidden")

	// ErrMalformed indicates an element carrying both a value and children.
	ErrMalformed = errors.New("property: element is both leaf and container")
)

// PathError records a failure at one path of a query or a set.
type PathError struct {
	Path []string
	Err  error
}

// Error implements error.
func (e *PathError) Error() string {
	return e.Err.Error() + " at " + strings.Join(e.Path, "/")
}

// Unwrap returns the underlying sentinel.
func (e *PathError) Unwrap() error {
	return e.Err
}

func pathError(path []string, name string, err error) *PathError {
	full := make([]string, 0, len(path)+1)
	full = append(full, path...)
	full = append(full, name)
	return &PathError{Path: full, Err: err}
}
