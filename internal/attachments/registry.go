package attachments

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// RemovalStrategy irreversibly deletes the backing data of one attachment type.
// Implementations must treat already-deleted data as success.
type RemovalStrategy interface {
	Remove(ctx context.Context, req RemovalRequest) error
}

// RemovalFunc adapts a function to RemovalStrategy.
type RemovalFunc func(ctx context.Context, req RemovalRequest) error

// Remove calls f.
func (f RemovalFunc) Remove(ctx context.Context, req RemovalRequest) error {
	return f(ctx, req)
}

// Registry maps attachment types to their removal strategy.
type Registry struct {
	mu         sync.RWMutex
	strategies map[Type]RemovalStrategy
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[Type]RemovalStrategy)}
}

// Register binds a strategy to a type. Each type may be registered once.
func (r *Registry) Register(t Type, strategy RemovalStrategy) error {
	t = ParseType(string(t))
	if t == "" {
		return fmt.Errorf("register removal strategy: empty type")
	}
	if strategy == nil {
		return fmt.Errorf("register removal strategy for %q: nil strategy", t)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.strategies[t]; exists {
		return fmt.Errorf("register removal strategy for %q: already registered", t)
	}
	r.strategies[t] = strategy
	return nil
}

// MustRegister is Register for static wiring; it panics on error.
func (r *Registry) MustRegister(t Type, strategy RemovalStrategy) {
	if err := r.Register(t, strategy); err != nil {
		panic(err)
	}
}

// Resolve returns the strategy for t, if any.
func (r *Registry) Resolve(t Type) (RemovalStrategy, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	strategy, ok := r.strategies[ParseType(string(t))]
	return strategy, ok
}

// Types lists registered types in sorted order.
func (r *Registry) Types() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Type, 0, len(r.strategies))
	for t := range r.strategies {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// String renders the registered types for logs.
func (r *Registry) String() string {
	types := r.Types()
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return strings.Join(parts, ",")
}
