package idempotency

import (
	"context"
	"time"
)

// Entry is a stored dispatch result. Entries are written once per successful
// dispatch and replaced wholesale, never updated in place.
type Entry struct {
	Key         string
	MessageType string
	Value       any
	ExpiresAt   time.Time
}

// Expired reports whether the entry has expired at now.
func (e Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// Store holds idempotent dispatch results.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: methods should honor cancellation where they perform I/O.
// - Errors: Get returns (Entry{}, false, nil) on miss or expiry; an error
//   means the store itself failed.
type Store interface {
	// Get returns the unexpired entry stored under key.
	Get(ctx context.Context, key string) (Entry, bool, error)

	// Set stores entry under entry.Key for ttl. The store sets ExpiresAt.
	// A ttl <= 0 stores nothing.
	Set(ctx context.Context, entry Entry, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
