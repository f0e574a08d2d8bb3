package kv

import "github.com/eskil/leaseloop/internal/slug"

// Key is a string that is safe to use directly against a backing store.
type Key struct {
	s string
}

// NewKey slugifies s (lowercase, alphanumerics and '-'/'/' only, bounded
// length) before wrapping it.
func NewKey(s string) Key {
	return Key{s: slug.Slugify(s)}
}

// RawKey wraps s unchanged, for callers that already know it is store-safe
// (e.g. keys constructed by composing other Keys).
func RawKey(s string) Key {
	return Key{s: s}
}

// String returns the underlying key string.
func (k Key) String() string {
	return k.s
}
