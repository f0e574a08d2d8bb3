package kv_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/eskil/leaseloop/kv"
	"github.com/eskil/leaseloop/store/memory"
)

type widget struct {
	Name     string `json:"name"`
	rev      uint64
}

func (w *widget) Revision() uint64     { return w.rev }
func (w *widget) SetRevision(r uint64) { w.rev = r }

func TestPublishWritesBackRevision(t *testing.T) {
	s := memory.New()
	b, err := s.Bucket(context.Background(), "widgets", 0)
	if err != nil {
		t.Fatalf("Bucket: %v", err)
	}
	ctx := context.Background()
	key := kv.NewKey("w1")

	w := &widget{Name: "first"}
	if _, err := kv.Publish(ctx, b, key, w); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if w.Revision() != 0 {
		t.Fatalf("expected first publish to land at revision 0, got %d", w.Revision())
	}

	w.Name = "second"
	if _, err := kv.Publish(ctx, b, key, w); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if w.Revision() != 1 {
		t.Fatalf("expected second publish to bump to revision 1, got %d", w.Revision())
	}

	raw, found, err := b.Get(ctx, key)
	if err != nil || !found {
		t.Fatalf("Get: found=%v err=%v", found, err)
	}
	var stored widget
	if err := json.Unmarshal(raw, &stored); err != nil {
		t.Fatalf("decode stored value: %v", err)
	}
	if stored.Name != "second" {
		t.Fatalf("stored value not updated: %+v", stored)
	}
}
