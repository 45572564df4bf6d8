package idempotency

import "errors"

// MaxKeyLength is the longest idempotency key used verbatim. Longer keys are
// replaced by their SHA-256 digest.
const MaxKeyLength = 512

// Sentinel errors for idempotency operations.
var (
	ErrInvalidKey       = errors.New("idempotency: key is invalid")
	ErrInvalidTTL       = errors.New("idempotency: ttl must not be negative")
	ErrInvalidPrefix    = errors.New("idempotency: key prefix must not contain ':' or whitespace")
	ErrLockNotAcquired  = errors.New("idempotency: reservation not acquired")
	ErrInvalidLockerKey = errors.New("idempotency: locker key is empty")
	ErrNilBackend       = errors.New("idempotency: backend is nil")
)
