package idempotency

import (
	"fmt"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultTTL       = time.Hour
	DefaultKeyPrefix = "idempotency"
)

// Config configures idempotent deduplication.
type Config struct {
	// TTL is how long a successful result is replayed.
	// Default: 1h
	TTL time.Duration

	// KeyPrefix namespaces cache keys: <prefix>:<messageType>:<key>.
	// Default: "idempotency"
	KeyPrefix string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		TTL:       DefaultTTL,
		KeyPrefix: DefaultKeyPrefix,
	}
}

// Validate reports configuration errors. Zero values are valid and mean
// "use the default".
func (c Config) Validate() error {
	if c.TTL < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidTTL, c.TTL)
	}
	if strings.ContainsAny(c.KeyPrefix, ": \t\r\n") {
		return fmt.Errorf("%w: %q", ErrInvalidPrefix, c.KeyPrefix)
	}
	return nil
}

// withDefaults fills zero values.
func (c Config) withDefaults() Config {
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = DefaultKeyPrefix
	}
	return c
}
