// Package property implements the recursive property tree used by every
// get, set and push exchanged between a vDC and the vdSM.
//
// A tree is made of Elements. An Element is either a leaf carrying exactly
// one Value, a container carrying ordered child Elements, or a query
// placeholder carrying neither ("return this subtree in full").
//
// # Queries
//
// Query walks a device's tree along the shape of a request:
//
//   - a placeholder returns the named subtree in full
//   - a container descends only into the named children
//   - an empty name is a wildcard over the current level
//   - a missing path is reported per path (ErrNotFound), never for the
//     whole request; under an array the error is ErrNoContentForArray
//
// # Mutation
//
// Merge applies a set request as a partial update. Only the leaves present
// in the patch are written. The patch is validated completely before any
// leaf changes, so a rejected set leaves the tree untouched.
//
// # Concurrency
//
// Store keeps one lock per dSUID. Reads of one device share the lock and
// see a consistent snapshot; writes to one device are serialized; different
// devices never wait on each other.
package property
