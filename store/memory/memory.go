// Package memory is the in-memory store backend: used for tests, and as
// the reference implementation the etcd and NATS backends are checked
// against. It generalizes the original implementation's MemoryStore, with
// revision bookkeeping per key and watch events broadcast through
// kv.Broadcast rather than delivered to a single consumer.
package memory

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/eskil/leaseloop/kv"
)

// Store is a process-local collection of named buckets.
type Store struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

// New returns an empty Store.
func New() *Store {
	return &Store{buckets: make(map[string]*bucket)}
}

// Bucket returns the named bucket, creating it on first use. ttl is ignored:
// this backend never prunes entries by age, and exists for tests that do
// not depend on it.
func (s *Store) Bucket(ctx context.Context, name string, ttl time.Duration) (kv.Bucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[name]
	if !ok {
		b = newBucket()
		s.buckets[name] = b
	}
	return b, nil
}

type record struct {
	value    []byte
	revision uint64
}

type bucket struct {
	mu        sync.Mutex
	entries   map[string]record
	emit      chan kv.WatchEvent
	broadcast *kv.Broadcast
}

func newBucket() *bucket {
	emit := make(chan kv.WatchEvent, 64)
	return &bucket{
		entries:   make(map[string]record),
		emit:      emit,
		broadcast: kv.NewBroadcast(emit),
	}
}

// Insert implements the compare-and-swap contract from kv.Bucket: a fresh
// key always succeeds at revision 0; a caller whose expectedRevision is
// behind the stored revision is stale (ErrRetry, the caller lost a race);
// at the stored revision, an identical value is a no-op (Exists) and a
// changed value bumps the revision (Created); an expectedRevision ahead of
// the stored one always bumps the revision (Created).
func (b *bucket) Insert(ctx context.Context, key kv.Key, value []byte, expectedRevision uint64) (kv.Outcome, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	k := key.String()
	current, exists := b.entries[k]
	if !exists {
		rec := record{value: value, revision: 0}
		b.entries[k] = rec
		b.notify(kv.Put, key, value, 0)
		return kv.Outcome{Created: true, Revision: 0}, nil
	}

	if expectedRevision < current.revision {
		return kv.Outcome{}, kv.ErrRetry
	}

	if expectedRevision == current.revision && bytes.Equal(current.value, value) {
		return kv.Outcome{Created: false, Revision: current.revision}, nil
	}

	newRev := current.revision + 1
	b.entries[k] = record{value: value, revision: newRev}
	b.notify(kv.Put, key, value, newRev)
	return kv.Outcome{Created: true, Revision: newRev}, nil
}

func (b *bucket) Get(ctx context.Context, key kv.Key) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.entries[key.String()]
	if !ok {
		return nil, false, nil
	}
	return rec.value, true, nil
}

func (b *bucket) Delete(ctx context.Context, key kv.Key) error {
	b.mu.Lock()
	rec, ok := b.entries[key.String()]
	if ok {
		delete(b.entries, key.String())
	}
	b.mu.Unlock()

	if ok {
		b.notify(kv.Delete, key, rec.value, rec.revision)
	}
	return nil
}

// Entries returns a snapshot of the bucket. Iteration order over a Go map
// is randomized, so, as spec.md notes, callers must not depend on any
// ordering here.
func (b *bucket) Entries(ctx context.Context) (map[string][]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string][]byte, len(b.entries))
	for k, rec := range b.entries {
		out[k] = rec.value
	}
	return out, nil
}

func (b *bucket) Watch(ctx context.Context) (<-chan kv.WatchEvent, error) {
	sub, unsubscribe := b.broadcast.Subscribe()
	out := make(chan kv.WatchEvent, 16)
	go func() {
		defer close(out)
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-sub:
				if !ok {
					return
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (b *bucket) notify(t kv.EventType, key kv.Key, value []byte, revision uint64) {
	select {
	case b.emit <- kv.WatchEvent{Type: t, Key: key, Value: value, Revision: revision}:
	default:
		// A full emit buffer means broadcast isn't draining fast enough;
		// the event is dropped rather than blocking every writer, and no
		// watcher sees it.
	}
}
