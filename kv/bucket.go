// Package kv is the key-value bucket abstraction layered over a lease
// handle's connection: revision-stamped compare-and-swap insert, get,
// delete, a point-in-time snapshot, and a watch stream. It generalizes the
// teacher's hand-rolled distributed-lock transaction
// (clientv3.Txn/Compare/Then against a single key) into a reusable,
// backend-agnostic bucket contract that store/etcd, store/memory, and
// store/nats each implement.
package kv

import (
	"context"
	"errors"
)

// EventType distinguishes the two kinds of change a watch stream delivers.
type EventType int

const (
	// Put means key now holds value at revision Revision.
	Put EventType = iota
	// Delete means key was removed; Value is the value it held.
	Delete
)

// WatchEvent is a single change delivered by Bucket.Watch.
type WatchEvent struct {
	Type     EventType
	Key      Key
	Value    []byte
	Revision uint64
}

// Outcome is the result of Bucket.Insert: either a new revision was written
// (Created), or the value at Revision already matched and nothing was
// written (Exists).
type Outcome struct {
	Created  bool
	Revision uint64
}

// Sentinel errors. Retry signals a compare-and-swap race the caller should
// retry with a refreshed revision; the others are lookup misses or backend
// failures.
var (
	ErrMissingBucket = errors.New("kv: bucket not found")
	ErrMissingKey    = errors.New("kv: key not found")
	ErrProvider      = errors.New("kv: provider error")
	ErrDecode        = errors.New("kv: could not decode value")
	ErrRetry         = errors.New("kv: compare-and-swap lost the race, retry with a refreshed revision")
)

// Bucket is a named collection of key to (value, revision) pairs, shared
// across any number of holders; writes are serialized purely by server
// revision checks; no client-side lock is required or permitted, since
// that would hide races rather than prevent them.
type Bucket interface {
	// Insert performs an atomic compare-and-swap. If the server's current
	// revision of key equals expectedRevision and its value already
	// matches value, it returns Outcome{Created: false, Revision:
	// expectedRevision} without writing. Otherwise it performs a
	// revision-bumping write and returns Outcome{Created: true, Revision:
	// newRevision}. A lost race - the server's revision moved under the
	// caller - returns ErrRetry.
	Insert(ctx context.Context, key Key, value []byte, expectedRevision uint64) (Outcome, error)

	// Get fetches the current value of key, if any.
	Get(ctx context.Context, key Key) (value []byte, found bool, err error)

	// Delete removes key from the bucket.
	Delete(ctx context.Context, key Key) error

	// Entries returns a snapshot of the whole bucket. Backends are not
	// required to return it in any particular order.
	Entries(ctx context.Context) (map[string][]byte, error)

	// Watch streams every subsequent Put/Delete. It must be resumable from
	// current state: a caller that first calls Entries and then drains
	// Watch must see no window in which an event is both missed and not
	// covered by the snapshot it already took. The returned channel is
	// closed when ctx is done or the backend connection is lost.
	Watch(ctx context.Context) (<-chan WatchEvent, error)
}
