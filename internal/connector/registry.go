package connector

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/time/rate"
)

// Registry owns the process's connector set. It is constructed once by the
// composition root and passed to whoever needs it; there is no package-level
// instance. Each registered service gets its own rate limiter so a tight
// check loop or a burst of scheduled jobs cannot hammer a vendor API.
type Registry struct {
	mu       sync.RWMutex
	conns    map[string]Connector
	limiters map[string]*rate.Limiter

	// opsPerSecond is the per-service rate applied at registration.
	opsPerSecond rate.Limit
	burst        int
}

// NewRegistry creates an empty registry. opsPerSecond <= 0 disables rate
// limiting.
func NewRegistry(opsPerSecond float64, burst int) *Registry {
	if burst <= 0 {
		burst = 1
	}
	return &Registry{
		conns:        make(map[string]Connector),
		limiters:     make(map[string]*rate.Limiter),
		opsPerSecond: rate.Limit(opsPerSecond),
		burst:        burst,
	}
}

// Register adds a connector under its own name, replacing any prior
// registration for that name.
func (r *Registry) Register(c Connector) error {
	name := c.Name()
	if name == "" {
		return fmt.Errorf("connector has no name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.conns[name] = c
	if r.opsPerSecond > 0 {
		r.limiters[name] = rate.NewLimiter(r.opsPerSecond, r.burst)
	}
	return nil
}

// Get returns the connector for name.
func (r *Registry) Get(name string) (Connector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conns[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownService, name)
	}
	return c, nil
}

// Names returns all registered service names, sorted for stable display.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.conns))
	for name := range r.conns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered connectors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Wait blocks until the named service's rate limiter admits one more
// operation, or ctx is canceled. Unknown names and disabled limiting both
// return immediately: limiting is protective, not load-bearing.
func (r *Registry) Wait(ctx context.Context, name string) error {
	r.mu.RLock()
	lim := r.limiters[name]
	r.mu.RUnlock()

	if lim == nil {
		return nil
	}
	return lim.Wait(ctx)
}
