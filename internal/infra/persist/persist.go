// Package persist provides whole-record durable storage. Each call is a
// complete read or a complete replace; there are no partial updates.
package persist

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when nothing has been stored yet.
var ErrNotFound = errors.New("persist: record not found")

// Store holds a single serialized record.
type Store interface {
	// Load returns the stored bytes or ErrNotFound.
	Load(ctx context.Context) ([]byte, error)

	// Replace atomically overwrites the stored bytes.
	Replace(ctx context.Context, data []byte) error

	// Remove deletes the record. Removing a missing record succeeds.
	Remove(ctx context.Context) error

	// Location describes where the record lives, for logs and status output.
	Location() string
}
