package idempotency

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Backend is a byte-oriented key/value cache with per-key expiry.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: methods should honor cancellation where they perform I/O.
// - Errors: Get returns (nil, false, nil) on miss; errors mean the backend failed.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// record is the stored form of an Entry.
type record struct {
	Type      string          `json:"type"`
	Value     json.RawMessage `json:"value"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// BackendStore adapts a Backend to Store, encoding values with a Codec chosen
// by message type.
type BackendStore struct {
	backend  Backend
	codecs   map[string]Codec
	fallback Codec
	now      func() time.Time
}

// BackendOption configures a BackendStore.
type BackendOption func(*BackendStore)

// WithCodec sets the codec for one message type.
func WithCodec(messageType string, c Codec) BackendOption {
	return func(s *BackendStore) {
		if c != nil {
			s.codecs[messageType] = c
		}
	}
}

// WithDefaultCodec sets the codec for message types without their own.
// Default: JSON()
func WithDefaultCodec(c Codec) BackendOption {
	return func(s *BackendStore) {
		if c != nil {
			s.fallback = c
		}
	}
}

// WithBackendClock replaces the time source used to stamp ExpiresAt.
func WithBackendClock(now func() time.Time) BackendOption {
	return func(s *BackendStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewBackendStore creates a Store over backend.
func NewBackendStore(backend Backend, opts ...BackendOption) (*BackendStore, error) {
	if backend == nil {
		return nil, ErrNilBackend
	}
	s := &BackendStore{
		backend:  backend,
		codecs:   make(map[string]Codec),
		fallback: JSON(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *BackendStore) codec(messageType string) Codec {
	if c, ok := s.codecs[messageType]; ok {
		return c
	}
	return s.fallback
}

// Get loads and decodes the entry for key.
func (s *BackendStore) Get(ctx context.Context, key string) (Entry, bool, error) {
	data, ok, err := s.backend.Get(ctx, key)
	if err != nil || !ok {
		return Entry{}, false, err
	}

	var rec record
	if err := jsonAPI.Unmarshal(data, &rec); err != nil {
		return Entry{}, false, fmt.Errorf("idempotency: corrupt entry %q: %w", key, err)
	}

	entry := Entry{Key: key, MessageType: rec.Type, ExpiresAt: rec.ExpiresAt}
	if entry.Expired(s.now()) {
		return Entry{}, false, nil
	}

	value, err := s.codec(rec.Type).Unmarshal(rec.Value)
	if err != nil {
		return Entry{}, false, fmt.Errorf("idempotency: decode entry %q: %w", key, err)
	}
	entry.Value = value
	return entry, true, nil
}

// Set encodes entry and writes it to the backend.
func (s *BackendStore) Set(ctx context.Context, entry Entry, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	value, err := s.codec(entry.MessageType).Marshal(entry.Value)
	if err != nil {
		return fmt.Errorf("idempotency: encode entry %q: %w", entry.Key, err)
	}

	data, err := jsonAPI.Marshal(record{
		Type:      entry.MessageType,
		Value:     value,
		ExpiresAt: s.now().Add(ttl),
	})
	if err != nil {
		return fmt.Errorf("idempotency: encode entry %q: %w", entry.Key, err)
	}
	return s.backend.Set(ctx, entry.Key, data, ttl)
}

// Delete removes key from the backend.
func (s *BackendStore) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

// Exists reports whether the backend holds key, without decoding it.
func (s *BackendStore) Exists(ctx context.Context, key string) (bool, error) {
	return s.backend.Exists(ctx, key)
}

var _ Store = (*BackendStore)(nil)
