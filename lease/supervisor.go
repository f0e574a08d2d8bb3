// Package lease implements the lease keep-alive state machine (driver.go),
// the spawner that wires it up (this file), and the handle callers hold
// (handle.go). It generalizes the teacher's service_registry package -
// which grants a lease, starts a goroutine draining client.KeepAlive, and
// revokes on shutdown - into a reusable primitive with an explicit
// cancellation contract instead of a registry-shaped API.
package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/eskil/leaseloop/conn"
	"github.com/eskil/leaseloop/internal/token"
	"github.com/google/uuid"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

type options struct {
	maxAttempts  int
	restartDelay time.Duration
	logger       *zap.Logger
}

// Option customizes CreateLease.
type Option func(*options)

// WithRestart lets the driver survive transient disconnects against the
// same lease id by restarting up to extraAttempts additional times after
// the first failure, waiting delay between attempts. It never extends the
// server-side deadline; the driver's own deadline check remains
// authoritative regardless of how many times it is restarted. The default,
// with no WithRestart option, is no restart: the first driver failure
// cancels the parent token.
func WithRestart(extraAttempts int, delay time.Duration) Option {
	return func(o *options) {
		o.maxAttempts = 1 + extraAttempts
		o.restartDelay = delay
	}
}

// WithLogger attaches a structured logger; CreateLease uses a no-op logger
// if this is never supplied.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		o.logger = log
	}
}

// CreateLease grants a lease, spawns its keep-alive driver as a background
// goroutine, and returns a handle. The driver's fate is reported only
// through the cancellation tree: a clean cancellation (the caller revoking,
// or parent being cancelled by something else) leaves the driver's exit
// silent; a driver failure cancels parent, propagating the loss to every
// component that holds a descendant of it.
func CreateLease(ctx context.Context, c conn.Conn, ttl time.Duration, parent token.Token, opts ...Option) (Handle, error) {
	cfg := options{maxAttempts: 1, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}

	serverID, effectiveTTL, err := c.Grant(ctx, ttl)
	if err != nil {
		return Handle{}, fmt.Errorf("lease: grant: %w", err)
	}

	// Open question from the design notes: the caller's parent token may
	// have fired between Grant returning and us getting here. If so the
	// server is holding a lease nobody will ever keep alive; revoke it
	// immediately instead of leaving it to expire on its own.
	if parent.Fired() {
		revokeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if rerr := c.Revoke(revokeCtx, serverID); rerr != nil {
			cfg.logger.Warn("revoke of orphaned lease failed",
				zap.Int64("lease_id", int64(serverID)), zap.Error(rerr))
		}
		return Handle{}, fmt.Errorf("lease: parent token already cancelled before keep-alive could start")
	}

	// sessionID tags every log line this lease's driver ever emits, across
	// restarts, the same way the teacher tags each registered service
	// instance with a generated uuid to tell instances of the same service
	// apart in logs.
	sessionID := uuid.New().String()
	log := cfg.logger.With(zap.String("session_id", sessionID), zap.Int64("lease_id", int64(serverID)))

	driverToken := parent.Child()
	go spawn(c, serverID, effectiveTTL, driverToken, parent, cfg, log)

	return Handle{id: idFromServer(serverID), conn: c, token: parent}, nil
}

// spawn runs the restart loop around the keep-alive driver. A panic inside
// the driver is recovered here - goroutine-local, so no process-global
// state is touched - and fires the parent token at once, without going
// through the restart loop.
func spawn(c conn.Conn, id clientv3.LeaseID, ttl time.Duration, driverToken, parent token.Token, cfg options, log *zap.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("keep-alive driver panicked", zap.Any("panic", r))
			parent.Fire()
		}
	}()

	attempts := 0
	for {
		attempts++
		err := runDriver(c, id, ttl, driverToken, log)
		if err == nil {
			// Cancellation path: the driver revoked and exited cleanly.
			return
		}

		log.Error("keep-alive driver failed", zap.Error(err), zap.Int("attempt", attempts))

		if attempts >= cfg.maxAttempts {
			parent.Fire()
			return
		}
		time.Sleep(cfg.restartDelay)
	}
}
