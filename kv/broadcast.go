package kv

import "sync"

// Broadcast turns a single-consumer watch channel into a fan-out multi
// subscriber stream, the way the original implementation's test-only
// TappableStream let more than one listener observe the same watch. It is
// promoted out of test code here because store/memory needs exactly this
// to let more than one caller watch the same bucket.
type Broadcast struct {
	mu     sync.Mutex
	subs   map[int]chan WatchEvent
	nextID int
	closed bool
}

// NewBroadcast starts draining upstream and fans every event out to all
// current subscribers. It stops, and closes every subscriber channel, when
// upstream closes.
func NewBroadcast(upstream <-chan WatchEvent) *Broadcast {
	b := &Broadcast{subs: make(map[int]chan WatchEvent)}
	go func() {
		for event := range upstream {
			b.mu.Lock()
			for _, sub := range b.subs {
				select {
				case sub <- event:
				default:
					// A slow subscriber does not get to stall the others;
					// it simply misses events until it catches up. Callers
					// needing guaranteed delivery should drain promptly.
				}
			}
			b.mu.Unlock()
		}
		b.mu.Lock()
		b.closed = true
		for id, sub := range b.subs {
			close(sub)
			delete(b.subs, id)
		}
		b.mu.Unlock()
	}()
	return b
}

// Subscribe returns a new channel receiving every event from now on, and an
// unsubscribe function the caller must call when done.
func (b *Broadcast) Subscribe() (<-chan WatchEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan WatchEvent, 16)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if b.closed {
			// The drain loop already closed and removed every subscriber
			// channel; closing again here would panic on a channel that's
			// already gone.
			return
		}
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
}
