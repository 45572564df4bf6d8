package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/jonwraymond/cmdbus/auth"
	"github.com/jonwraymond/cmdbus/bus"
	"github.com/jonwraymond/cmdbus/health"
	"github.com/jonwraymond/cmdbus/idempotency"
	"github.com/jonwraymond/cmdbus/observe"
	"github.com/jonwraymond/cmdbus/resilience"
)

// Pipeline is a Bus wired with the standard middleware chain:
//
//	observability → authorization → idempotency → circuit_breaker →
//	bulkhead → rate_limit → retry → timeout → extra middleware → handler
//
// Authorization, bulkhead, rate_limit and timeout are present only when
// configured.
type Pipeline struct {
	*bus.Bus

	breakers *resilience.BreakerGroup
	retry    *resilience.Retry
	store    idempotency.Store
	health   *health.Aggregator
	logger   observe.Logger
}

type options struct {
	observer   observe.Observer
	tracer     observe.Tracer
	metrics    []observe.MetricsSink
	logger     observe.Logger
	store      idempotency.Store
	locker     idempotency.Locker
	keyer      idempotency.Keyer
	scope      idempotency.ScopeFunc
	authorizer auth.Authorizer
	authOpts   []auth.MiddlewareOption
	breakerKey resilience.KeyFunc
	panicHook  bus.PanicHook
	extra      []bus.Middleware
}

// Option configures New.
type Option func(*options)

// WithObserver takes the tracer, meter, logger and slow threshold from obs.
// WithTracer, WithLogger and WithMetrics still apply on top.
func WithObserver(obs observe.Observer) Option {
	return func(o *options) { o.observer = obs }
}

// WithTracer sets the tracer used for dispatch spans.
func WithTracer(t observe.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithMetrics adds metrics sinks. Several sinks receive the same measurements.
func WithMetrics(sinks ...observe.MetricsSink) Option {
	return func(o *options) { o.metrics = append(o.metrics, sinks...) }
}

// WithLogger sets the logger shared by every middleware.
func WithLogger(l observe.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithStore sets the idempotency store.
// Default: idempotency.NewMemoryStore()
func WithStore(s idempotency.Store) Option {
	return func(o *options) { o.store = s }
}

// WithLocker adds a cross-process reservation around idempotent handler runs.
func WithLocker(l idempotency.Locker) Option {
	return func(o *options) { o.locker = l }
}

// WithKeyer replaces the idempotency cache key builder.
func WithKeyer(k idempotency.Keyer) Option {
	return func(o *options) { o.keyer = k }
}

// WithScope partitions idempotent results by scope(ctx).
// Default: the tenant and principal of the auth.Identity when an Authorizer
// is set, otherwise none
func WithScope(scope idempotency.ScopeFunc) Option {
	return func(o *options) { o.scope = scope }
}

// WithAuthorizer enables the authorization middleware. Stored idempotent
// results are then only replayed to the identity that produced them.
func WithAuthorizer(a auth.Authorizer, opts ...auth.MiddlewareOption) Option {
	return func(o *options) {
		o.authorizer = a
		o.authOpts = append(o.authOpts, opts...)
	}
}

// WithBreakerKey maps messages to breaker names.
// Default: resilience.ByMessageType
func WithBreakerKey(key resilience.KeyFunc) Option {
	return func(o *options) { o.breakerKey = key }
}

// WithPanicHook is passed to bus.WithPanicHook.
func WithPanicHook(hook bus.PanicHook) Option {
	return func(o *options) { o.panicHook = hook }
}

// WithMiddleware appends middleware inside the timeout, closest to the
// handler. They run once per attempt.
func WithMiddleware(mw ...bus.Middleware) Option {
	return func(o *options) { o.extra = append(o.extra, mw...) }
}

// New validates cfg and builds the pipeline.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger, tracer, metrics, slow, err := o.telemetry(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Retry.Logger == nil {
		cfg.Retry.Logger = logger
	}
	retry := resilience.NewRetry(cfg.Retry)

	breakers := resilience.NewBreakerGroup(cfg.CircuitBreaker)
	breakers.OnStateChange(func(name string, from, to resilience.State) {
		logger.Warn(context.Background(), "circuit breaker state changed",
			observe.Field{Key: "breaker", Value: name},
			observe.Field{Key: "from", Value: from.String()},
			observe.Field{Key: "to", Value: to.String()},
		)
	})

	store := o.store
	if store == nil {
		store = idempotency.NewMemoryStore()
	}
	idemOpts := []idempotency.Option{idempotency.WithLogger(logger)}
	if o.keyer != nil {
		idemOpts = append(idemOpts, idempotency.WithKeyer(o.keyer))
	}
	if o.locker != nil {
		idemOpts = append(idemOpts, idempotency.WithLocker(o.locker))
	}
	scope := o.scope
	if scope == nil && o.authorizer != nil {
		scope = identityScope
	}
	if scope != nil {
		idemOpts = append(idemOpts, idempotency.WithScope(scope))
	}

	chain := []bus.Middleware{
		observe.NewMiddleware(tracer, metrics, logger, observe.WithSlowThreshold(slow)),
	}
	if o.authorizer != nil {
		authOpts := append([]auth.MiddlewareOption{auth.WithLogger(logger)}, o.authOpts...)
		chain = append(chain, auth.NewMiddleware(o.authorizer, authOpts...))
	}
	chain = append(chain,
		idempotency.NewMiddleware(store, cfg.Idempotency, idemOpts...),
		resilience.NewGroupCircuitBreakerMiddleware(breakers, o.breakerKey, logger),
	)
	if cfg.Bulkhead != nil {
		chain = append(chain, resilience.NewBulkheadMiddleware(resilience.NewBulkhead(*cfg.Bulkhead)))
	}
	if cfg.RateLimit != nil {
		chain = append(chain, resilience.NewRateLimitMiddleware(resilience.NewRateLimiter(*cfg.RateLimit)))
	}
	chain = append(chain, resilience.NewRetryMiddleware(retry))
	if cfg.AttemptTimeout > 0 {
		chain = append(chain, resilience.NewTimeoutMiddleware(
			resilience.NewTimeout(resilience.TimeoutConfig{Timeout: cfg.AttemptTimeout})))
	}
	chain = append(chain, o.extra...)

	busOpts := []bus.Option{bus.WithMiddleware(chain...)}
	if o.panicHook != nil {
		busOpts = append(busOpts, bus.WithPanicHook(o.panicHook))
	}

	agg := health.NewAggregator(health.AggregatorConfig{Logger: logger})
	if err := agg.Register("circuits", health.NewBreakerGroupChecker(breakers)); err != nil {
		return nil, fmt.Errorf("pipeline: register health checker: %w", err)
	}

	return &Pipeline{
		Bus:      bus.New(busOpts...),
		breakers: breakers,
		retry:    retry,
		store:    store,
		health:   agg,
		logger:   logger,
	}, nil
}

// identityScope scopes idempotency keys to the authorized identity.
func identityScope(ctx context.Context) string {
	id := auth.IdentityFromContext(ctx)
	if id == nil {
		return ""
	}
	return id.TenantID + "/" + id.Principal
}

// telemetry resolves the observability components from the options.
func (o *options) telemetry(cfg Config) (observe.Logger, observe.Tracer, observe.MetricsSink, time.Duration, error) {
	logger, tracer := o.logger, o.tracer
	sinks := o.metrics
	slow := cfg.SlowThreshold

	if o.observer != nil {
		if logger == nil {
			logger = o.observer.Logger()
		}
		if tracer == nil {
			tracer = observe.NewTracer(o.observer.Tracer())
		}
		slow = o.observer.SlowThreshold()
		otelMetrics, err := observe.NewOTelMetrics(o.observer.Meter())
		if err != nil {
			return nil, nil, nil, 0, fmt.Errorf("pipeline: %w", err)
		}
		sinks = append([]observe.MetricsSink{otelMetrics}, sinks...)
	}

	if logger == nil {
		logger = observe.NopLogger()
	}
	if tracer == nil {
		tracer = observe.NopTracer()
	}
	metrics := observe.NopMetrics()
	if len(sinks) > 0 {
		metrics = observe.TeeMetrics(sinks...)
	}
	return logger, tracer, metrics, slow, nil
}

// Breakers returns the per-dependency circuit breakers.
func (p *Pipeline) Breakers() *resilience.BreakerGroup { return p.breakers }

// Retry returns the retry policy.
func (p *Pipeline) Retry() *resilience.Retry { return p.retry }

// Store returns the idempotency store.
func (p *Pipeline) Store() idempotency.Store { return p.store }

// Health returns an aggregator with a "circuits" checker registered. Callers
// may register more checkers, such as health.NewRedisChecker.
func (p *Pipeline) Health() *health.Aggregator { return p.health }

// Logger returns the logger shared by the middlewares.
func (p *Pipeline) Logger() observe.Logger { return p.logger }
