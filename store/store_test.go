package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/eskil/leaseloop/kv"
	"github.com/eskil/leaseloop/store"
	"github.com/eskil/leaseloop/store/memory"
)

func TestWatchFromStartCoversSnapshotAndLiveWrites(t *testing.T) {
	s := memory.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := s.Bucket(ctx, "v1/mdc", 0)
	if err != nil {
		t.Fatalf("Bucket: %v", err)
	}
	if _, err := b.Insert(ctx, kv.NewKey("a"), []byte("1"), 0); err != nil {
		t.Fatalf("seed a: %v", err)
	}

	events, err := store.WatchFromStart(ctx, b)
	if err != nil {
		t.Fatalf("WatchFromStart: %v", err)
	}

	if _, err := b.Insert(ctx, kv.NewKey("bb"), []byte("1"), 0); err != nil {
		t.Fatalf("insert bb: %v", err)
	}

	seen := map[string]bool{}
	for len(seen) < 2 {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatalf("event stream closed early, saw only %v", seen)
			}
			seen[ev.Key.String()] = true
		case <-time.After(time.Second):
			t.Fatalf("timed out, saw only %v", seen)
		}
	}

	if !seen["a"] || !seen["bb"] {
		t.Fatalf("expected to see both the snapshot entry and the live write, got %v", seen)
	}
}
