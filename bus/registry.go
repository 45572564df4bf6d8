package bus

import (
	"slices"
	"sync"
)

// Registry maps message type keys to exactly one handler.
//
// It is written during startup and read concurrently afterwards.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]HandlerFunc)}
}

// Register binds typeKey to h. The first binding wins; later attempts fail
// with HandlerAlreadyRegisteredError.
func (r *Registry) Register(typeKey string, h HandlerFunc) error {
	if typeKey == "" {
		return Validation("type key is empty")
	}
	if h == nil {
		return Validation("handler for %q is nil", typeKey)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[typeKey]; exists {
		return &HandlerAlreadyRegisteredError{TypeKey: typeKey}
	}
	r.handlers[typeKey] = h
	return nil
}

// Lookup returns the handler bound to typeKey.
func (r *Registry) Lookup(typeKey string) (HandlerFunc, bool) {
	r.mu.RLock()
	h, ok := r.handlers[typeKey]
	r.mu.RUnlock()
	return h, ok
}

// Types returns the registered type keys in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	keys := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		keys = append(keys, k)
	}
	r.mu.RUnlock()

	slices.Sort(keys)
	return keys
}

// Len returns the number of registered handlers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers)
}
