package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/eskil/leaseloop/conn"
	"github.com/eskil/leaseloop/internal/clock"
	"github.com/eskil/leaseloop/internal/token"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

// heartbeatResult is what a single keep-alive round trip produced.
type heartbeatResult struct {
	ttl time.Duration
	err error
}

// runDriver owns lease id's heartbeat loop for as long as the lease is
// maintainable. It returns nil iff tok fired and the driver shut down
// cleanly, having issued a best-effort revoke; any non-nil error means the
// lease could no longer be maintained, which the supervisor treats as
// fatal and propagates by cancelling the parent token.
//
// The loop is a four-branch biased select, checked in priority order on
// every wakeup: deadline (precondition, not a branch) > response > cancel
// > heartbeat tick. Go's select picks pseudo-randomly among ready cases, so
// the bias is hand-built: a non-blocking pre-check for response/cancel runs
// ahead of the real, blocking select, so a ready response or cancellation
// always preempts a ready tick.
//
// Each tick's heartbeat RPC (etcd's KeepAliveOnce, a single send+response
// round trip) runs in its own goroutine, feeding its outcome back over
// responses; at most one heartbeat is ever in flight, so a string of
// immediate retries (ttl forced to 0 after a failure) cannot pile up
// goroutines - unlike the original implementation's decoupled stream
// send/receive, KeepAliveOnce is synchronous per call, and this guard
// keeps the adaptation from turning that into an unbounded fan-out.
func runDriver(c conn.Conn, id clientv3.LeaseID, initialTTL time.Duration, tok token.Token, log *zap.Logger) error {
	ttl := initialTTL
	deadline := clock.FromTTL(ttl)

	responses := make(chan heartbeatResult, 1)
	inFlight := false

	for {
		if deadline.Exceeded() {
			return fmt.Errorf("%w: lease %d", ErrDeadlineExceeded, id)
		}

		select {
		case res := <-responses:
			inFlight = false
			newTTL, err := handleHeartbeatResult(res)
			if err != nil {
				return fmt.Errorf("lease %d: %w", id, err)
			}
			ttl = newTTL
			if res.err == nil {
				deadline = clock.FromTTL(ttl)
			}
			continue
		case <-tok.Done():
			return shutdown(c, id, log)
		default:
		}

		var tick <-chan time.Time
		if !inFlight {
			tick = time.After(ttl / 2)
		}

		select {
		case res := <-responses:
			inFlight = false
			newTTL, err := handleHeartbeatResult(res)
			if err != nil {
				return fmt.Errorf("lease %d: %w", id, err)
			}
			ttl = newTTL
			if res.err == nil {
				deadline = clock.FromTTL(ttl)
			}

		case <-tok.Done():
			return shutdown(c, id, log)

		case <-tick:
			log.Debug("sending heartbeat", zap.Int64("lease_id", int64(id)), zap.Duration("ttl", ttl))
			inFlight = true
			go func() {
				refreshed, err := c.KeepAliveOnce(context.Background(), id)
				if err != nil {
					responses <- heartbeatResult{err: err}
					return
				}
				responses <- heartbeatResult{ttl: refreshed}
			}()
		}
	}
}

// handleHeartbeatResult turns a single keep-alive outcome into the ttl to
// continue with, or a fatal error. A send/receive failure is recoverable:
// it sets ttl to 0 (via the zero return value), which makes the next tick
// fire immediately and retry against the same connection; callers must
// leave deadline untouched on this path; recomputing it from a ttl of 0
// would collapse it to now and turn a single dropped heartbeat into an
// immediate ErrDeadlineExceeded instead of leaving the original deadline's
// retry window intact. A response of ttl == 0 with no error means the
// server said the lease is gone, which is not recoverable.
func handleHeartbeatResult(res heartbeatResult) (time.Duration, error) {
	if res.err != nil {
		return 0, nil
	}
	if res.ttl <= 0 {
		return 0, ErrExpiredOrRevoked
	}
	return res.ttl, nil
}

// shutdown is the cancellation path: best-effort revoke, then a clean
// return. Revoke errors are logged and dropped - the lease is gone either
// way once the holder has stopped heartbeating it.
func shutdown(c conn.Conn, id clientv3.LeaseID, log *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Revoke(ctx, id); err != nil {
		log.Warn("revoke on cancellation failed, lease may already be gone",
			zap.Int64("lease_id", int64(id)), zap.Error(err))
	}
	return nil
}
