package platform

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// ConfigurationError reports a request for a platform that has no adapter
// registered. It is a deployment mistake, not a runtime condition to retry.
type ConfigurationError struct {
	Platform Platform
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("no adapter registered for platform %q", e.Platform)
}

// Registry maps platform identifiers to their adapters and routes outbound
// sends. Registration happens once at startup; steady-state access is
// read-only.
type Registry struct {
	mu       sync.RWMutex
	adapters map[Platform]Adapter
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[Platform]Adapter)}
}

// Register adds an adapter under its platform key. Re-registration logs a
// warning and overwrites, so credentials can be hot-reloaded.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[a.Platform()]; exists {
		log.Printf("platform: overwriting existing adapter for %q", a.Platform())
	}
	r.adapters[a.Platform()] = a
}

// Get returns the adapter for the given platform.
func (r *Registry) Get(p Platform) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[p]
	if !ok {
		return nil, &ConfigurationError{Platform: p}
	}
	return a, nil
}

// Has reports whether an adapter is registered for the platform. Routing
// uses this to answer 503 when a platform is intentionally disabled.
func (r *Registry) Has(p Platform) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.adapters[p]
	return ok
}

// SendMessage dispatches an outbound message to the adapter for its target
// platform and returns the platform-native message id.
func (r *Registry) SendMessage(ctx context.Context, msg OutboundMessage) (string, error) {
	a, err := r.Get(msg.Platform)
	if err != nil {
		return "", err
	}
	return a.SendMessage(ctx, msg)
}
