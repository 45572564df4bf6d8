// Package idempotency deduplicates dispatches that carry an idempotency key.
//
// Messages implementing bus.Idempotent with a non-empty key are looked up
// under <prefix>:<messageType>:<key>. A hit returns the stored result without
// invoking the handler. A miss runs the handler; a successful result is
// stored for Config.TTL, and errors are never stored.
//
// Concurrent dispatches with the same key are collapsed so the handler runs
// once per key at a time. A Locker extends that reservation across
// processes sharing a Redis.
//
// Stores:
//
//   - MemoryStore keeps entries in a map with lazy expiry and Sweep.
//   - BackendStore encodes entries with a Codec onto a byte Backend:
//     RedisBackend (go-redis) or FreeCacheBackend (freecache).
package idempotency
