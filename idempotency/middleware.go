package idempotency

import (
	"context"
	"errors"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/cmdbus/bus"
	"github.com/jonwraymond/cmdbus/observe"
)

// MiddlewareName is the name reported by bus.Bus.Middlewares.
const MiddlewareName = "idempotency"

// Middleware replays the result of an earlier successful dispatch that
// carried the same idempotency key.
//
// Contract:
//   - Concurrency: concurrent dispatches sharing a cache key run the handler
//     once; the others wait for and share its outcome.
//   - Context: a waiting caller returns ctx.Err() when its own ctx ends. If
//     the caller running the handler is canceled first, live waiters run the
//     handler again under their own ctx.
//   - Errors: errors are never cached; store failures degrade to a miss and
//     are logged, never failing the dispatch.
type Middleware struct {
	store  Store
	keyer  Keyer
	locker Locker
	scope  ScopeFunc
	logger observe.Logger
	cfg    Config
	flight singleflight.Group
}

// ScopeFunc names the owner of a dispatch, such as the calling principal.
// Results are only replayed to dispatches with the same scope.
type ScopeFunc func(ctx context.Context) string

// Option configures a Middleware.
type Option func(*Middleware)

// WithKeyer replaces the DefaultKeyer.
func WithKeyer(k Keyer) Option {
	return func(m *Middleware) {
		if k != nil {
			m.keyer = k
		}
	}
}

// WithLocker adds a cross-process reservation around the handler call.
func WithLocker(l Locker) Option {
	return func(m *Middleware) {
		m.locker = l
	}
}

// WithScope partitions cached results by scope(ctx). An empty scope shares
// the unscoped key space.
func WithScope(scope ScopeFunc) Option {
	return func(m *Middleware) {
		m.scope = scope
	}
}

// WithLogger sets the logger for degraded store operations.
func WithLogger(l observe.Logger) Option {
	return func(m *Middleware) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewMiddleware creates the middleware. A nil store uses a new MemoryStore;
// zero config fields use the defaults.
func NewMiddleware(store Store, cfg Config, opts ...Option) *Middleware {
	cfg = cfg.withDefaults()
	if store == nil {
		store = NewMemoryStore()
	}

	m := &Middleware{
		store:  store,
		keyer:  NewDefaultKeyer(cfg.KeyPrefix),
		logger: observe.NopLogger(),
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Name returns "idempotency".
func (m *Middleware) Name() string { return MiddlewareName }

// Store returns the backing store.
func (m *Middleware) Store() Store { return m.store }

// Config returns the effective configuration.
func (m *Middleware) Config() Config { return m.cfg }

// flightPanic carries a panic out of the singleflight goroutine so it can be
// re-raised on the caller's goroutine.
type flightPanic struct {
	value any
}

func (p *flightPanic) Error() string { return "idempotency: handler panicked" }

// flightCanceled marks a flight that failed after the ctx it ran on ended.
type flightCanceled struct {
	err error
}

func (c *flightCanceled) Error() string { return c.err.Error() }
func (c *flightCanceled) Unwrap() error { return c.err }

// Handle passes messages without a key straight through. Keyed messages are
// answered from the store when possible; otherwise next runs once per key
// and a successful result is stored for the configured TTL.
func (m *Middleware) Handle(ctx context.Context, msg bus.Message, next bus.HandlerFunc) (any, error) {
	key, ok := bus.IdempotencyKeyOf(msg)
	if !ok {
		return next(ctx, msg)
	}

	messageType := msg.MessageType()
	if m.scope != nil && ValidateKey(key) == nil {
		key = ScopedKey(m.scope(ctx), key)
	}
	cacheKey, err := m.keyer.Key(messageType, key)
	if err != nil {
		return nil, err
	}

	for {
		if value, hit := m.lookup(ctx, cacheKey); hit {
			return value, nil
		}

		ch := m.flight.DoChan(cacheKey, func() (result any, err error) {
			defer func() {
				if r := recover(); r != nil {
					result, err = nil, &flightPanic{value: r}
				}
			}()
			result, err = m.execute(ctx, msg, messageType, cacheKey, next)
			if err != nil && ctx.Err() != nil {
				err = &flightCanceled{err: err}
			}
			return result, err
		})

		select {
		case res := <-ch:
			var fp *flightPanic
			if errors.As(res.Err, &fp) {
				panic(fp.value)
			}
			// The caller that ran the flight went away. A waiter whose own
			// ctx is still live starts a new flight.
			var fc *flightCanceled
			if errors.As(res.Err, &fc) {
				if ctx.Err() != nil {
					return nil, fc.err
				}
				continue
			}
			return res.Val, res.Err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// execute runs inside the per-key flight.
func (m *Middleware) execute(ctx context.Context, msg bus.Message, messageType, cacheKey string, next bus.HandlerFunc) (any, error) {
	// A flight that finished just before this one started has already stored.
	if value, hit := m.lookup(ctx, cacheKey); hit {
		return value, nil
	}

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, cacheKey)
		switch {
		case err == nil:
			defer func() {
				if uerr := unlock(context.WithoutCancel(ctx)); uerr != nil {
					m.logger.Warn(ctx, "idempotency unlock failed",
						observe.Field{Key: "cache_key", Value: cacheKey},
						observe.Field{Key: "error", Value: uerr.Error()},
					)
				}
			}()
			if value, hit := m.lookup(ctx, cacheKey); hit {
				return value, nil
			}
		case errors.Is(err, ErrLockNotAcquired):
			return nil, bus.WrapError(bus.KindConflict, err, "duplicate "+messageType+" in flight")
		case ctx.Err() != nil:
			return nil, err
		default:
			m.logger.Warn(ctx, "idempotency lock failed, continuing unlocked",
				observe.Field{Key: "cache_key", Value: cacheKey},
				observe.Field{Key: "error", Value: err.Error()},
			)
		}
	}

	result, err := next(ctx, msg)
	if err != nil {
		return nil, err
	}

	entry := Entry{Key: cacheKey, MessageType: messageType, Value: result}
	if serr := m.store.Set(context.WithoutCancel(ctx), entry, m.cfg.TTL); serr != nil {
		m.logger.Warn(ctx, "idempotency store set failed",
			observe.Field{Key: "cache_key", Value: cacheKey},
			observe.Field{Key: "error", Value: serr.Error()},
		)
	}
	return result, nil
}

// lookup reads the store, treating failures as a miss.
func (m *Middleware) lookup(ctx context.Context, cacheKey string) (any, bool) {
	entry, ok, err := m.store.Get(ctx, cacheKey)
	if err != nil {
		m.logger.Warn(ctx, "idempotency store get failed",
			observe.Field{Key: "cache_key", Value: cacheKey},
			observe.Field{Key: "error", Value: err.Error()},
		)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	m.logger.Debug(ctx, "idempotent replay", observe.Field{Key: "cache_key", Value: cacheKey})
	return entry.Value, true
}

var _ bus.Middleware = (*Middleware)(nil)
