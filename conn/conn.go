// Package conn is the thin connection façade the lease core and the etcd
// store backend share: grant/keep-alive/revoke for leases, plus raw KV
// access for the store backend to build transactions on top of. It mirrors
// the way the teacher wraps a single *clientv3.Client and hands it to both
// a service registry and a service discovery client - one dial, many
// consumers - except here the façade is an explicit interface so the lease
// driver can be tested against a fake instead of a live cluster.
package conn

import (
	"context"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

// Conn is everything the lease core and the etcd store backend need from a
// connection to the cluster. Implementations must be cheap to share across
// goroutines; EtcdConn holds only a pointer to the underlying client.
type Conn interface {
	// Grant requests a new lease for the given TTL and returns the
	// server-assigned id and the (possibly server-shrunk) effective TTL.
	Grant(ctx context.Context, ttl time.Duration) (id clientv3.LeaseID, effectiveTTL time.Duration, err error)

	// KeepAliveOnce sends a single heartbeat for id and waits for the
	// server's response, returning the refreshed remaining TTL. A TTL of
	// zero means the lease is gone (expired or revoked).
	KeepAliveOnce(ctx context.Context, id clientv3.LeaseID) (ttl time.Duration, err error)

	// Revoke deletes the lease and everything attached to it.
	Revoke(ctx context.Context, id clientv3.LeaseID) error

	// TimeToLive reports the lease's remaining TTL as the server sees it
	// right now, without refreshing it. A remaining TTL of zero means the
	// lease is gone.
	TimeToLive(ctx context.Context, id clientv3.LeaseID) (time.Duration, error)

	// KV exposes the raw etcd KV surface for the store/etcd backend to
	// build compare-and-swap transactions on top of.
	KV() clientv3.KV

	// Watcher exposes the raw etcd watch surface for the store/etcd
	// backend.
	Watcher() clientv3.Watcher
}

// EtcdConn is the production Conn backed by a real etcd client connection,
// built the same way the teacher's registry and discovery constructors do:
// clientv3.New with an endpoint list and a dial timeout.
type EtcdConn struct {
	client *clientv3.Client
	log    *zap.Logger
}

// Options configures an EtcdConn dial.
type Options struct {
	Endpoints   []string
	DialTimeout time.Duration
	Logger      *zap.Logger
}

// Dial opens a connection to the cluster.
func Dial(opts Options) (*EtcdConn, error) {
	if len(opts.Endpoints) == 0 {
		return nil, fmt.Errorf("conn: no endpoints configured")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   opts.Endpoints,
		DialTimeout: opts.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("conn: dial etcd: %w", err)
	}

	return &EtcdConn{client: cli, log: log}, nil
}

// Close releases the underlying client connection.
func (c *EtcdConn) Close() error {
	return c.client.Close()
}

func (c *EtcdConn) Grant(ctx context.Context, ttl time.Duration) (clientv3.LeaseID, time.Duration, error) {
	seconds := int64(ttl.Round(time.Second) / time.Second)
	if seconds <= 0 {
		seconds = 1
	}

	resp, err := c.client.Grant(ctx, seconds)
	if err != nil {
		return 0, 0, fmt.Errorf("conn: grant lease: %w", err)
	}

	c.log.Debug("lease granted", zap.Int64("lease_id", int64(resp.ID)), zap.Int64("ttl", resp.TTL))
	return resp.ID, time.Duration(resp.TTL) * time.Second, nil
}

func (c *EtcdConn) KeepAliveOnce(ctx context.Context, id clientv3.LeaseID) (time.Duration, error) {
	resp, err := c.client.KeepAliveOnce(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("conn: keep-alive: %w", err)
	}
	return time.Duration(resp.TTL) * time.Second, nil
}

func (c *EtcdConn) Revoke(ctx context.Context, id clientv3.LeaseID) error {
	if _, err := c.client.Revoke(ctx, id); err != nil {
		return fmt.Errorf("conn: revoke lease: %w", err)
	}
	return nil
}

func (c *EtcdConn) TimeToLive(ctx context.Context, id clientv3.LeaseID) (time.Duration, error) {
	resp, err := c.client.TimeToLive(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("conn: time to live: %w", err)
	}
	if resp.TTL <= 0 {
		return 0, nil
	}
	return time.Duration(resp.TTL) * time.Second, nil
}

func (c *EtcdConn) KV() clientv3.KV {
	return c.client.KV
}

func (c *EtcdConn) Watcher() clientv3.Watcher {
	return c.client.Watcher
}
