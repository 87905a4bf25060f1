package property

import (
	"fmt"
	"sort"
	"sync"
)

// Source is the backing store of one addressable entity (host, vDC or vdSD).
type Source interface {
	// PropertyTree returns a consistent snapshot of the entity as a root
	// container. The caller owns the returned tree.
	PropertyTree() *Element

	// Writable reports whether the leaf at path accepts set requests.
	Writable(path []string) bool

	// ApplyProperties commits the leaves of a set request. tree is a root
	// container holding only the written leaves, validated by Merge;
	// fields it does not name must keep their current value.
	ApplyProperties(tree *Element) error
}

// Store routes property requests to Sources by dSUID.
//
// Thread Safety:
//   - Get calls on the same dSUID run concurrently.
//   - Set calls on the same dSUID are serialized, and never overlap a Get.
//   - Calls on different dSUIDs are independent.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	mu  sync.RWMutex
	src Source
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[string]*entry)}
}

// Register adds or replaces the source for id.
func (s *Store) Register(id string, src Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = &entry{src: src}
}

// Unregister removes the source for id.
func (s *Store) Unregister(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
}

// Has reports whether id is registered.
func (s *Store) Has(id string) bool {
	_, ok := s.lookup(id)
	return ok
}

// IDs returns the registered ids in sorted order.
func (s *Store) IDs() []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

func (s *Store) lookup(id string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	return e, ok
}

// Get answers a get request for id.
//
// Returns:
//   - Result: Matching elements plus per-path errors
//   - error: ErrNotFound when id itself is unknown
func (s *Store) Get(id string, query []*Element) (Result, error) {
	e, ok := s.lookup(id)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	e.mu.RLock()
	tree := e.src.PropertyTree()
	e.mu.RUnlock()

	return Query(tree, query), nil
}

// Set applies a set request to id.
//
// The snapshot, merge and commit happen under the entity's write lock, so
// two sets on one dSUID never interleave. Only the written leaves reach the
// source, so state the device changes on its own between snapshot and
// commit is kept.
func (s *Store) Set(id string, patch []*Element) error {
	e, ok := s.lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	tree := e.src.PropertyTree()
	if err := Merge(tree, patch, e.src.Writable); err != nil {
		return err
	}
	if err := e.src.ApplyProperties(Written(tree, patch)); err != nil {
		return fmt.Errorf("applying properties to %s: %w", id, err)
	}
	return nil
}
