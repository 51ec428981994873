package localstore

import "context"

// UpdateFunc computes the next value of a key from its current one. ok is
// false when the key is absent. Returning changed == false leaves the key
// untouched.
type UpdateFunc func(old []byte, ok bool) (next []byte, changed bool, err error)

// Write is one entry of an atomic batch. Delete removes the key and
// ignores Value.
type Write struct {
	Key    string
	Value  []byte
	Delete bool
}

// Repository persists raw values by key. Every Set assigns the key a new
// revision greater than any revision handed out before.
type Repository interface {
	// Get returns the value and true, or nil and false when key is absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set upserts key and returns its new revision.
	Set(ctx context.Context, key string, value []byte) (int64, error)
	// Update reads key and writes fn's result without any other writer
	// getting in between. rev is only meaningful when changed is true.
	Update(ctx context.Context, key string, fn UpdateFunc) (rev int64, changed bool, err error)
	// Apply performs writes all-or-nothing and returns the new revision of
	// every key it set.
	Apply(ctx context.Context, writes []Write) (map[string]int64, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) (map[string][]byte, error)
	Clear(ctx context.Context) error
	// Revisions returns the current revision of every stored key.
	Revisions(ctx context.Context) (map[string]int64, error)
}
