package resilience

import (
	"slices"
	"sync"
)

// BreakerGroup lazily creates one CircuitBreaker per dependency name, all
// sharing a template configuration.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Ownership: breakers returned by Get live for the lifetime of the group.
type BreakerGroup struct {
	template CircuitBreakerConfig

	mu        sync.RWMutex
	breakers  map[string]*CircuitBreaker
	listeners []func(name string, from, to State)
}

// NewBreakerGroup creates a group. template.Name is ignored; each breaker is
// named after its dependency. template.OnStateChange, if set, is registered
// as the first listener.
func NewBreakerGroup(template CircuitBreakerConfig) *BreakerGroup {
	g := &BreakerGroup{breakers: make(map[string]*CircuitBreaker)}
	if template.OnStateChange != nil {
		g.listeners = append(g.listeners, template.OnStateChange)
	}
	template.OnStateChange = g.dispatchStateChange
	g.template = template
	return g
}

// Get returns the breaker for name, creating it on first use.
func (g *BreakerGroup) Get(name string) *CircuitBreaker {
	g.mu.RLock()
	cb, ok := g.breakers[name]
	g.mu.RUnlock()
	if ok {
		return cb
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if cb, ok = g.breakers[name]; ok {
		return cb
	}

	cfg := g.template
	cfg.Name = name
	cb = NewCircuitBreaker(cfg)
	g.breakers[name] = cb
	return cb
}

// Lookup returns the breaker for name without creating it.
func (g *BreakerGroup) Lookup(name string) (*CircuitBreaker, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	cb, ok := g.breakers[name]
	return cb, ok
}

// Names returns the names of all created breakers in sorted order.
func (g *BreakerGroup) Names() []string {
	g.mu.RLock()
	names := make([]string, 0, len(g.breakers))
	for name := range g.breakers {
		names = append(names, name)
	}
	g.mu.RUnlock()

	slices.Sort(names)
	return names
}

// Snapshots returns a snapshot of every breaker, sorted by name.
func (g *BreakerGroup) Snapshots() []CircuitBreakerSnapshot {
	names := g.Names()
	out := make([]CircuitBreakerSnapshot, 0, len(names))
	for _, name := range names {
		if cb, ok := g.Lookup(name); ok {
			out = append(out, cb.Snapshot())
		}
	}
	return out
}

// Reset closes every breaker in the group.
func (g *BreakerGroup) Reset() {
	g.mu.RLock()
	breakers := make([]*CircuitBreaker, 0, len(g.breakers))
	for _, cb := range g.breakers {
		breakers = append(breakers, cb)
	}
	g.mu.RUnlock()

	for _, cb := range breakers {
		cb.Reset()
	}
}

// OnStateChange registers a listener for transitions of any breaker in the group.
func (g *BreakerGroup) OnStateChange(fn func(name string, from, to State)) {
	if fn == nil {
		return
	}
	g.mu.Lock()
	g.listeners = append(g.listeners, fn)
	g.mu.Unlock()
}

func (g *BreakerGroup) dispatchStateChange(name string, from, to State) {
	g.mu.RLock()
	listeners := slices.Clone(g.listeners)
	g.mu.RUnlock()

	for _, fn := range listeners {
		fn(name, from, to)
	}
}
