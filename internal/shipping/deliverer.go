package shipping

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"runlog/internal/logging"
)

// Deliverer transports a batch of records to a log store. Implementations
// must treat every call as at-least-once: a failed batch is retried whole.
type Deliverer interface {
	Deliver(ctx context.Context, batch []logging.Record) error
}

// DelivererOptions carries the configuration a factory may need.
type DelivererOptions struct {
	URL     string
	APIKey  string
	Dir     string
	Timeout time.Duration
}

// Factory constructs a deliverer from configuration.
type Factory func(opts DelivererOptions) (Deliverer, error)

// Registry maps configured handler class names to deliverer factories.
// Selection by the logging.handlers.shipping.class key happens at pipeline
// construction, never lazily.
type Registry struct {
	mu        sync.Mutex
	factories map[string]Factory
}

// NewDelivererRegistry returns an empty registry.
func NewDelivererRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory under the given class name, replacing any previous
// registration.
func (r *Registry) Register(name string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(strings.TrimSpace(name))] = factory
}

// Has reports whether a factory is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.factories[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// New constructs the deliverer registered under name.
func (r *Registry) New(name string, opts DelivererOptions) (Deliverer, error) {
	r.mu.Lock()
	factory, ok := r.factories[strings.ToLower(strings.TrimSpace(name))]
	known := make([]string, 0, len(r.factories))
	for key := range r.factories {
		known = append(known, key)
	}
	r.mu.Unlock()

	if !ok {
		sort.Strings(known)
		return nil, fmt.Errorf("unknown shipping handler class %q (registered: %s)", name, strings.Join(known, ", "))
	}
	return factory(opts)
}
