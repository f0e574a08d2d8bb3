package lease

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eskil/leaseloop/conn/fake"
	"github.com/eskil/leaseloop/internal/token"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

const testLeaseID = clientv3.LeaseID(42)

func TestDriverSurvivesHeartbeatsUntilCancelled(t *testing.T) {
	c := fake.New()
	c.KeepAliveOnceFunc = func(ctx context.Context, id clientv3.LeaseID) (time.Duration, error) {
		return 60 * time.Millisecond, nil
	}

	tok := token.New()
	done := make(chan error, 1)
	go func() {
		done <- runDriver(c, testLeaseID, 60*time.Millisecond, tok, zap.NewNop())
	}()

	time.Sleep(150 * time.Millisecond) // several heartbeats
	tok.Fire()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("driver returned error on cancellation path: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("driver did not exit after cancellation")
	}

	revoked := c.Revoked()
	if len(revoked) != 1 || revoked[0] != testLeaseID {
		t.Fatalf("expected exactly one revoke of %d, got %v", testLeaseID, revoked)
	}
}

func TestDriverExpiredReturnsError(t *testing.T) {
	c := fake.New()
	c.KeepAliveOnceFunc = func(ctx context.Context, id clientv3.LeaseID) (time.Duration, error) {
		return 0, nil
	}

	tok := token.New()
	err := runDriver(c, testLeaseID, 40*time.Millisecond, tok, zap.NewNop())
	if !errors.Is(err, ErrExpiredOrRevoked) {
		t.Fatalf("expected ErrExpiredOrRevoked, got %v", err)
	}
}

func TestDriverDeadlineExceededWhenHeartbeatsFail(t *testing.T) {
	c := fake.New()
	c.KeepAliveOnceFunc = func(ctx context.Context, id clientv3.LeaseID) (time.Duration, error) {
		return 0, errors.New("simulated connection drop")
	}

	tok := token.New()
	start := time.Now()
	err := runDriver(c, testLeaseID, 50*time.Millisecond, tok, zap.NewNop())
	elapsed := time.Since(start)

	if !errors.Is(err, ErrDeadlineExceeded) {
		t.Fatalf("expected ErrDeadlineExceeded, got %v", err)
	}
	// The deadline is the original ttl out; the driver must not give up
	// long before or long after it.
	if elapsed < 30*time.Millisecond || elapsed > 500*time.Millisecond {
		t.Fatalf("deadline fired at an unexpected time: %v", elapsed)
	}
}

func TestDriverRecoversFromASingleHeartbeatFailure(t *testing.T) {
	c := fake.New()
	failedOnce := false
	c.KeepAliveOnceFunc = func(ctx context.Context, id clientv3.LeaseID) (time.Duration, error) {
		if !failedOnce {
			failedOnce = true
			return 0, errors.New("transient blip")
		}
		return 80 * time.Millisecond, nil
	}

	tok := token.New()
	done := make(chan error, 1)
	go func() {
		done <- runDriver(c, testLeaseID, 80*time.Millisecond, tok, zap.NewNop())
	}()

	time.Sleep(150 * time.Millisecond)
	tok.Fire()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("driver should have recovered and exited cleanly on cancel, got: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("driver did not exit after cancellation")
	}
}
