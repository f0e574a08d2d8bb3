package lease

import (
	"context"

	"github.com/eskil/leaseloop/conn"
	"github.com/eskil/leaseloop/internal/token"
)

// Handle is the opaque value callers hold for a lease: an id, a validity
// query, a cancellation token scoped to the lease's lifetime, and an
// explicit revoke.
type Handle struct {
	id    ID
	conn  conn.Conn
	token token.Token
}

// ID returns the lease's server-assigned identifier.
func (h Handle) ID() ID {
	return h.id
}

// IsValid reports whether the server would, at this moment, honour a key
// bound to this lease. It must not lie: if the cancellation token has
// already fired, it returns false without making a network call - the
// lease is known lost, asking the server again cannot change that.
func (h Handle) IsValid(ctx context.Context) (bool, error) {
	if h.token.Fired() {
		return false, nil
	}
	remaining, err := h.conn.TimeToLive(ctx, h.id.toServer())
	if err != nil {
		return false, err
	}
	return remaining > 0, nil
}

// Child returns a descendant cancellation token that fires when the lease
// is lost or when the caller itself cancels it. Use it to scope work that
// must not outlive the lease.
func (h Handle) Child() token.Token {
	return h.token.Child()
}

// Revoke fires the handle's cancellation token. The driver observes this,
// calls the server-side revoke, and exits; Revoke does not block on that
// happening.
func (h Handle) Revoke() {
	h.token.Fire()
}
