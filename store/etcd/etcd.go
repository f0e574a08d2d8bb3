// Package etcd is the store backend whose revision semantics come straight
// from the etcd server: insert is a compare-and-swap transaction shaped
// exactly like the teacher's hand-rolled distributed lock
// (clientv3.Txn/Compare(ModRevision...)/Then(OpPut...)/Commit), generalized
// from a single lock key to an arbitrary bucket of keys under a shared
// prefix.
package etcd

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/eskil/leaseloop/conn"
	"github.com/eskil/leaseloop/kv"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

// Store looks up buckets as key prefixes under one shared etcd connection.
type Store struct {
	conn conn.Conn
	log  *zap.Logger
}

// New wraps conn for use as a store.Store.
func New(c conn.Conn, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{conn: c, log: log}
}

// Bucket returns a view over all keys under name + "/". ttl is accepted for
// interface parity with the other backends and ignored: this store does not
// expire entries, and its writes are not attached to any lease.
func (s *Store) Bucket(ctx context.Context, name string, ttl time.Duration) (kv.Bucket, error) {
	return &bucket{store: s, prefix: strings.TrimSuffix(name, "/") + "/"}, nil
}

type bucket struct {
	store  *Store
	prefix string
}

func (b *bucket) fullKey(key kv.Key) string {
	return b.prefix + key.String()
}

func (b *bucket) Insert(ctx context.Context, key kv.Key, value []byte, expectedRevision uint64) (kv.Outcome, error) {
	fk := b.fullKey(key)
	kvc := b.store.conn.KV()

	getResp, err := kvc.Get(ctx, fk)
	if err != nil {
		return kv.Outcome{}, fmt.Errorf("store/etcd: get %q: %w", fk, err)
	}

	if len(getResp.Kvs) == 0 {
		txnResp, err := kvc.Txn(ctx).
			If(clientv3.Compare(clientv3.ModRevision(fk), "=", 0)).
			Then(clientv3.OpPut(fk, string(value))).
			Commit()
		if err != nil {
			return kv.Outcome{}, fmt.Errorf("store/etcd: create %q: %w", fk, err)
		}
		if !txnResp.Succeeded {
			return kv.Outcome{}, kv.ErrRetry
		}
		return kv.Outcome{Created: true, Revision: uint64(txnResp.Header.Revision)}, nil
	}

	current := getResp.Kvs[0]
	currentRev := uint64(current.ModRevision)

	if expectedRevision < currentRev {
		return kv.Outcome{}, kv.ErrRetry
	}
	if expectedRevision == currentRev && bytes.Equal(current.Value, value) {
		return kv.Outcome{Created: false, Revision: currentRev}, nil
	}

	txnResp, err := kvc.Txn(ctx).
		If(clientv3.Compare(clientv3.ModRevision(fk), "=", current.ModRevision)).
		Then(clientv3.OpPut(fk, string(value))).
		Commit()
	if err != nil {
		return kv.Outcome{}, fmt.Errorf("store/etcd: update %q: %w", fk, err)
	}
	if !txnResp.Succeeded {
		return kv.Outcome{}, kv.ErrRetry
	}
	return kv.Outcome{Created: true, Revision: uint64(txnResp.Header.Revision)}, nil
}

func (b *bucket) Get(ctx context.Context, key kv.Key) ([]byte, bool, error) {
	resp, err := b.store.conn.KV().Get(ctx, b.fullKey(key))
	if err != nil {
		return nil, false, fmt.Errorf("store/etcd: get: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return nil, false, nil
	}
	return resp.Kvs[0].Value, true, nil
}

func (b *bucket) Delete(ctx context.Context, key kv.Key) error {
	if _, err := b.store.conn.KV().Delete(ctx, b.fullKey(key)); err != nil {
		return fmt.Errorf("store/etcd: delete: %w", err)
	}
	return nil
}

func (b *bucket) Entries(ctx context.Context) (map[string][]byte, error) {
	resp, err := b.store.conn.KV().Get(ctx, b.prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("store/etcd: entries: %w", err)
	}
	out := make(map[string][]byte, len(resp.Kvs))
	for _, pair := range resp.Kvs {
		out[strings.TrimPrefix(string(pair.Key), b.prefix)] = pair.Value
	}
	return out, nil
}

func (b *bucket) Watch(ctx context.Context) (<-chan kv.WatchEvent, error) {
	wch := b.store.conn.Watcher().Watch(ctx, b.prefix, clientv3.WithPrefix())
	out := make(chan kv.WatchEvent, 16)

	go func() {
		defer close(out)
		for resp := range wch {
			if err := resp.Err(); err != nil {
				b.store.log.Warn("watch stream error, closing", zap.String("prefix", b.prefix), zap.Error(err))
				return
			}
			for _, ev := range resp.Events {
				name := strings.TrimPrefix(string(ev.Kv.Key), b.prefix)
				switch ev.Type {
				case clientv3.EventTypePut:
					out <- kv.WatchEvent{
						Type:     kv.Put,
						Key:      kv.RawKey(name),
						Value:    ev.Kv.Value,
						Revision: uint64(ev.Kv.ModRevision),
					}
				case clientv3.EventTypeDelete:
					var prev []byte
					if ev.PrevKv != nil {
						prev = ev.PrevKv.Value
					}
					out <- kv.WatchEvent{
						Type:     kv.Delete,
						Key:      kv.RawKey(name),
						Value:    prev,
						Revision: uint64(ev.Kv.ModRevision),
					}
				}
			}
		}
	}()

	return out, nil
}
