// Package slug normalizes arbitrary caller-supplied strings into keys that
// are safe to use directly against an etcd-like key-value store: lowercase,
// restricted to alphanumerics and the path separators '-' and '/', with
// runs of disallowed characters collapsed to a single '-' and the result
// bounded in length.
package slug

import "strings"

// MaxLength is the longest slug this package will produce; longer input is
// truncated after normalization.
const MaxLength = 256

// Slugify normalizes s into a store-safe key.
func Slugify(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	collapsing := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '/':
			b.WriteRune(r)
			collapsing = false
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r - 'A' + 'a')
			collapsing = false
		default:
			if !collapsing && b.Len() > 0 {
				b.WriteByte('-')
				collapsing = true
			}
		}
	}

	out := strings.Trim(b.String(), "-")
	if len(out) > MaxLength {
		out = strings.TrimRight(out[:MaxLength], "-")
	}
	return out
}
