package kv

import (
	"context"
	"encoding/json"
	"fmt"
)

// Versioned lets Publish read and write back an object's revision field,
// the way the original implementation's Versioned trait let its publish
// helper round-trip a revision through an arbitrary serializable type.
type Versioned interface {
	Revision() uint64
	SetRevision(r uint64)
}

// Publish serializes obj to JSON (matching the original implementation's
// serde_json, the one spot in this module where no library in the example
// pack offers anything the standard encoding/json doesn't already do
// exactly as well), inserts it at obj's current revision, and on success
// writes the returned revision back into obj.
func Publish[T Versioned](ctx context.Context, b Bucket, key Key, obj T) (Outcome, error) {
	bytes, err := json.Marshal(obj)
	if err != nil {
		return Outcome{}, fmt.Errorf("kv: publish: encode: %w", err)
	}

	outcome, err := b.Insert(ctx, key, bytes, obj.Revision())
	if err != nil {
		return Outcome{}, err
	}

	obj.SetRevision(outcome.Revision)
	return outcome, nil
}
