// Package nats is the store backend for deployments that run a NATS
// JetStream KeyValue store instead of etcd. It leans on the bucket's own
// native Create/Update CAS primitives rather than reimplementing
// compare-and-swap by hand, which is the one backend here that doesn't need
// a Txn of its own.
package nats

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/eskil/leaseloop/kv"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Store opens or creates JetStream KeyValue buckets on demand.
type Store struct {
	js  nats.JetStreamContext
	log *zap.Logger
}

// New wraps an already-connected JetStream context.
func New(js nats.JetStreamContext, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{js: js, log: log}
}

func (s *Store) Bucket(ctx context.Context, name string, ttl time.Duration) (kv.Bucket, error) {
	store, err := s.js.KeyValue(name)
	if errors.Is(err, nats.ErrBucketNotFound) {
		store, err = s.js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket: name,
			TTL:    ttl,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("store/nats: open bucket %q: %w", name, err)
	}
	return &bucket{kv: store, log: s.log}, nil
}

type bucket struct {
	kv  nats.KeyValue
	log *zap.Logger
}

func (b *bucket) Insert(ctx context.Context, key kv.Key, value []byte, expectedRevision uint64) (kv.Outcome, error) {
	name := key.String()

	entry, err := b.kv.Get(name)
	if err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) {
			rev, err := b.kv.Create(name, value)
			if err != nil {
				if errors.Is(err, nats.ErrKeyExists) || isWrongSequence(err) {
					return kv.Outcome{}, kv.ErrRetry
				}
				return kv.Outcome{}, fmt.Errorf("store/nats: create %q: %w", name, err)
			}
			return kv.Outcome{Created: true, Revision: rev}, nil
		}
		return kv.Outcome{}, fmt.Errorf("store/nats: get %q: %w", name, err)
	}

	currentRev := entry.Revision()
	if expectedRevision < currentRev {
		return kv.Outcome{}, kv.ErrRetry
	}
	if expectedRevision == currentRev && bytes.Equal(entry.Value(), value) {
		return kv.Outcome{Created: false, Revision: currentRev}, nil
	}

	rev, err := b.kv.Update(name, value, currentRev)
	if err != nil {
		if isWrongSequence(err) {
			return kv.Outcome{}, kv.ErrRetry
		}
		return kv.Outcome{}, fmt.Errorf("store/nats: update %q: %w", name, err)
	}
	return kv.Outcome{Created: true, Revision: rev}, nil
}

func (b *bucket) Get(ctx context.Context, key kv.Key) ([]byte, bool, error) {
	entry, err := b.kv.Get(key.String())
	if err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("store/nats: get: %w", err)
	}
	return entry.Value(), true, nil
}

func (b *bucket) Delete(ctx context.Context, key kv.Key) error {
	if err := b.kv.Delete(key.String()); err != nil {
		return fmt.Errorf("store/nats: delete: %w", err)
	}
	return nil
}

func (b *bucket) Entries(ctx context.Context) (map[string][]byte, error) {
	keys, err := b.kv.Keys()
	if err != nil {
		if errors.Is(err, nats.ErrNoKeysFound) {
			return map[string][]byte{}, nil
		}
		return nil, fmt.Errorf("store/nats: keys: %w", err)
	}
	out := make(map[string][]byte, len(keys))
	for _, name := range keys {
		entry, err := b.kv.Get(name)
		if err != nil {
			b.log.Warn("dropped key during snapshot, raced with a delete", zap.String("key", name), zap.Error(err))
			continue
		}
		out[name] = entry.Value()
	}
	return out, nil
}

func (b *bucket) Watch(ctx context.Context) (<-chan kv.WatchEvent, error) {
	watcher, err := b.kv.WatchAll()
	if err != nil {
		return nil, fmt.Errorf("store/nats: watch: %w", err)
	}

	out := make(chan kv.WatchEvent, 16)
	go func() {
		defer close(out)
		defer watcher.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case entry, ok := <-watcher.Updates():
				if !ok {
					return
				}
				if entry == nil {
					// nil marks "caught up with current state", not an event.
					continue
				}
				switch entry.Operation() {
				case nats.KeyValuePut:
					out <- kv.WatchEvent{
						Type:     kv.Put,
						Key:      kv.RawKey(entry.Key()),
						Value:    entry.Value(),
						Revision: entry.Revision(),
					}
				case nats.KeyValueDelete, nats.KeyValuePurge:
					out <- kv.WatchEvent{
						Type:     kv.Delete,
						Key:      kv.RawKey(entry.Key()),
						Revision: entry.Revision(),
					}
				}
			}
		}
	}()

	return out, nil
}

// isWrongSequence recognizes JetStream's CAS rejection on KeyValue.Update.
// The nats.go client surfaces it as a plain *jsm.APIError whose message
// names the mismatch rather than as a typed sentinel, so matching on the
// message is the client's documented way of telling a lost race apart from
// a real connectivity failure.
func isWrongSequence(err error) bool {
	return strings.Contains(err.Error(), "wrong last sequence")
}
