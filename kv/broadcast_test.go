package kv_test

import (
	"testing"
	"time"

	"github.com/eskil/leaseloop/kv"
)

func TestBroadcastFansOutToAllSubscribers(t *testing.T) {
	upstream := make(chan kv.WatchEvent)
	b := kv.NewBroadcast(upstream)

	sub1, unsub1 := b.Subscribe()
	defer unsub1()
	sub2, unsub2 := b.Subscribe()
	defer unsub2()

	upstream <- kv.WatchEvent{Type: kv.Put, Key: kv.NewKey("a")}

	for i, sub := range []<-chan kv.WatchEvent{sub1, sub2} {
		select {
		case ev := <-sub:
			if ev.Key.String() != "a" {
				t.Fatalf("subscriber %d got wrong key %q", i, ev.Key.String())
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d never received the broadcast event", i)
		}
	}
}

func TestBroadcastClosesSubscribersWhenUpstreamCloses(t *testing.T) {
	upstream := make(chan kv.WatchEvent)
	b := kv.NewBroadcast(upstream)

	sub, _ := b.Subscribe()
	close(upstream)

	select {
	case _, ok := <-sub:
		if ok {
			t.Fatalf("expected subscriber channel to be closed, got an event instead")
		}
	case <-time.After(time.Second):
		t.Fatalf("subscriber channel was never closed after upstream closed")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	upstream := make(chan kv.WatchEvent)
	b := kv.NewBroadcast(upstream)

	sub, unsub := b.Subscribe()
	unsub()

	upstream <- kv.WatchEvent{Type: kv.Put, Key: kv.NewKey("a")}

	select {
	case _, ok := <-sub:
		if ok {
			t.Fatalf("unsubscribed channel should not receive further events")
		}
	case <-time.After(100 * time.Millisecond):
		// Unsubscribe already closed the channel, so the receive above is
		// ready at once; this branch only bounds the wait.
	}
}
