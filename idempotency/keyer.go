package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/jonwraymond/cmdbus/bus"
)

// Keyer derives the cache key for a message type and idempotency key.
//
// Contract:
// - Determinism: same inputs must produce the same key.
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: invalid keys return an error matching ErrInvalidKey.
type Keyer interface {
	Key(messageType, key string) (string, error)
}

// DefaultKeyer builds keys of the form <prefix>:<messageType>:<key>.
type DefaultKeyer struct {
	Prefix string
}

// NewDefaultKeyer creates a keyer. An empty prefix uses DefaultKeyPrefix.
func NewDefaultKeyer(prefix string) *DefaultKeyer {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &DefaultKeyer{Prefix: prefix}
}

// Key returns the cache key. Keys longer than MaxKeyLength are replaced by
// the hex SHA-256 of the key. Blank keys and keys containing CR or LF are
// rejected as validation errors.
func (k *DefaultKeyer) Key(messageType, key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", bus.WrapError(bus.KindValidation, err, "idempotency key for "+messageType)
	}
	if len(key) > MaxKeyLength {
		sum := sha256.Sum256([]byte(key))
		key = hex.EncodeToString(sum[:])
	}
	return k.Prefix + ":" + messageType + ":" + key, nil
}

// ValidateKey checks that key can be used as an idempotency key.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}

// ScopedKey prefixes key with a fixed-length digest of scope, so keys from
// different scopes never collide. An empty scope returns key unchanged.
func ScopedKey(scope, key string) string {
	if scope == "" {
		return key
	}
	sum := sha256.Sum256([]byte(scope))
	return hex.EncodeToString(sum[:8]) + ":" + key
}

// ContentKey derives an idempotency key from a message payload: the first
// 16 bytes of SHA-256 over its canonical JSON, hex encoded. Map keys are
// sorted, so equal payloads produce equal keys.
func ContentKey(v any) (string, error) {
	canonical, err := sonic.ConfigStd.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("idempotency: failed to canonicalize payload: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:16]), nil
}

var _ Keyer = (*DefaultKeyer)(nil)
