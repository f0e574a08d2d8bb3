// Package token implements the lease core's cancellation token tree: a
// one-shot signal that fires at most once per node, where a parent firing
// cancels every descendant and a child firing cancels only itself (and its
// own descendants). It is a thin wrapper over context.Context/CancelFunc,
// since Go's own context tree already gives these exact semantics; the
// wrapper exists so callers work with the vocabulary the lease core needs
// (Child, Fire, Fired) instead of passing a bare context.Context around as
// a value-carrying type it was never meant to be used as here.
package token

import "context"

// Token is one node in a cancellation tree.
type Token struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a root token with no parent.
func New() Token {
	ctx, cancel := context.WithCancel(context.Background())
	return Token{ctx: ctx, cancel: cancel}
}

// FromContext adopts an existing context as the root of a token tree, so a
// caller's own cancellation (e.g. process shutdown) also fires the root.
func FromContext(ctx context.Context) Token {
	child, cancel := context.WithCancel(ctx)
	return Token{ctx: child, cancel: cancel}
}

// Child derives a descendant token. Firing t fires every descendant; firing
// the child fires only the child (and its own descendants), never t.
func (t Token) Child() Token {
	ctx, cancel := context.WithCancel(t.ctx)
	return Token{ctx: ctx, cancel: cancel}
}

// Fire cancels the token. Safe to call more than once; only the first call
// has any effect, matching the "fires at most once" invariant.
func (t Token) Fire() {
	t.cancel()
}

// Fired reports whether the token has already fired.
func (t Token) Fired() bool {
	select {
	case <-t.ctx.Done():
		return true
	default:
		return false
	}
}

// Done returns a channel that closes when the token fires, for use directly
// in a select statement.
func (t Token) Done() <-chan struct{} {
	return t.ctx.Done()
}

// Ctx exposes the underlying context for handing off to APIs (the etcd
// client, time.After-based waits via context) that take a context.Context
// rather than a Token. It must not be used to carry request-scoped values;
// it exists purely for its cancellation signal.
func (t Token) Ctx() context.Context {
	return t.ctx
}
