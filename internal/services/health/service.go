package health

import (
	"context"
	"sort"
	"sync"
)

// Check reports nil when a dependency is usable.
type Check func(ctx context.Context) error

// Service encapsulates readiness checks.
type Service struct {
	mu     sync.RWMutex
	checks map[string]Check
}

// NewService constructs a new health service.
func NewService() *Service {
	return &Service{checks: make(map[string]Check)}
}

// Add registers a named check, replacing any check with the same name.
func (s *Service) Add(name string, check Check) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = check
}

// Status runs every check and returns a per-check payload plus the overall verdict.
func (s *Service) Status(ctx context.Context) (map[string]string, bool) {
	s.mu.RLock()
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	checks := make(map[string]Check, len(s.checks))
	for k, v := range s.checks {
		checks[k] = v
	}
	s.mu.RUnlock()
	sort.Strings(names)

	out := make(map[string]string, len(names))
	ok := true
	for _, name := range names {
		if err := checks[name](ctx); err != nil {
			out[name] = err.Error()
			ok = false
			continue
		}
		out[name] = "ok"
	}
	return out, ok
}
