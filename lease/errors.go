package lease

import "errors"

// Sentinel errors returned by the keep-alive driver. Both are fatal to the
// lease: the supervisor treats either as "this node has lost its seat" and
// cancels the parent cancellation token.
var (
	// ErrDeadlineExceeded means no successful heartbeat response arrived
	// before the lease's deadline; the driver gives up rather than keep
	// guessing at a server that may be gone for good.
	ErrDeadlineExceeded = errors.New("lease: deadline exceeded, check server status")

	// ErrExpiredOrRevoked means the server explicitly reported a zero
	// remaining TTL: the lease is gone, heartbeating further is pointless.
	ErrExpiredOrRevoked = errors.New("lease: expired or revoked")
)
