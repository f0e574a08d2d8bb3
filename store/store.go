// Package store is the uniform front over pluggable bucket backends: an
// in-memory store for tests (store/memory), an etcd-backed store
// (store/etcd), and a NATS JetStream KeyValue-backed store (store/nats).
// All three hand back a kv.Bucket satisfying the same insert/get/delete/
// entries/watch contract.
package store

import (
	"context"
	"time"

	"github.com/eskil/leaseloop/kv"
)

// Store looks up or creates named buckets. ttl, if non-zero, asks the
// backend to auto-expire entries older than it; backends that cannot do
// this (store/memory) ignore it for entries but may still honor it as a
// server-side hint where the underlying technology supports it.
type Store interface {
	Bucket(ctx context.Context, name string, ttl time.Duration) (kv.Bucket, error)
}

// WatchFromStart opens a bucket's watch before taking its snapshot, then
// replays the snapshot as synthetic Put events ahead of whatever arrives
// live, so callers never have a window where an event is both missed and
// not already covered by the snapshot. This generalizes the original
// implementation's KeyValueStoreManager.watch handoff to any kv.Bucket; it
// does not depend on the backend's own Watch being resumable. An entry can
// arrive twice: once from the snapshot and once more from the live stream.
func WatchFromStart(ctx context.Context, b kv.Bucket) (<-chan kv.WatchEvent, error) {
	upstream, err := b.Watch(ctx)
	if err != nil {
		return nil, err
	}

	entries, err := b.Entries(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan kv.WatchEvent, len(entries)+16)
	for k, v := range entries {
		out <- kv.WatchEvent{Type: kv.Put, Key: kv.RawKey(k), Value: v}
	}

	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-upstream:
				if !ok {
					return
				}
				out <- event
			}
		}
	}()

	return out, nil
}
