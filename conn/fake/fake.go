// Package fake provides an in-process conn.Conn double for exercising the
// lease driver and supervisor without a live etcd cluster - mirroring how
// the original implementation's own test suite drove its keep-alive logic
// against an in-memory store rather than a real server.
package fake

import (
	"context"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// Conn is a scriptable conn.Conn. Every method has a func field; leaving a
// field nil makes the call return no error. Tests set the fields they care
// about and call the rest through defaults.
type Conn struct {
	mu sync.Mutex

	GrantFunc         func(ctx context.Context, ttl time.Duration) (clientv3.LeaseID, time.Duration, error)
	KeepAliveOnceFunc func(ctx context.Context, id clientv3.LeaseID) (time.Duration, error)
	RevokeFunc        func(ctx context.Context, id clientv3.LeaseID) error
	TimeToLiveFunc    func(ctx context.Context, id clientv3.LeaseID) (time.Duration, error)

	revokedIDs []clientv3.LeaseID
	nextID     clientv3.LeaseID
}

// New returns a Conn whose Grant hands out sequential lease ids starting
// at 1 and whose Revoke succeeds trivially, until overridden. By default
// KeepAliveOnce and TimeToLive report a TTL of zero, which conn.Conn defines
// as a lease that is gone.
func New() *Conn {
	return &Conn{nextID: 1}
}

func (c *Conn) Grant(ctx context.Context, ttl time.Duration) (clientv3.LeaseID, time.Duration, error) {
	if c.GrantFunc != nil {
		return c.GrantFunc(ctx, ttl)
	}
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.mu.Unlock()
	return id, ttl, nil
}

func (c *Conn) KeepAliveOnce(ctx context.Context, id clientv3.LeaseID) (time.Duration, error) {
	if c.KeepAliveOnceFunc != nil {
		return c.KeepAliveOnceFunc(ctx, id)
	}
	return 0, nil
}

func (c *Conn) Revoke(ctx context.Context, id clientv3.LeaseID) error {
	c.mu.Lock()
	c.revokedIDs = append(c.revokedIDs, id)
	c.mu.Unlock()
	if c.RevokeFunc != nil {
		return c.RevokeFunc(ctx, id)
	}
	return nil
}

func (c *Conn) TimeToLive(ctx context.Context, id clientv3.LeaseID) (time.Duration, error) {
	if c.TimeToLiveFunc != nil {
		return c.TimeToLiveFunc(ctx, id)
	}
	return 0, nil
}

func (c *Conn) KV() clientv3.KV {
	return nil
}

func (c *Conn) Watcher() clientv3.Watcher {
	return nil
}

// Revoked reports the ids Revoke has been called with, in call order.
func (c *Conn) Revoked() []clientv3.LeaseID {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]clientv3.LeaseID, len(c.revokedIDs))
	copy(out, c.revokedIDs)
	return out
}
