package bootstrap

import (
	"context"
	"sync"
	"sync/atomic"

	"carelog-backend/internal/shared/config"
)

// Gate builds the App once per process and hands the same instance to every caller.
// A failed build is not remembered, so the next call tries again.
type Gate struct {
	cfg   config.Config
	build func(context.Context, config.Config) (*App, error)

	ready atomic.Bool
	mu    sync.Mutex
	app   *App
}

// NewGate returns a gate that bootstraps with Build.
func NewGate(cfg config.Config) *Gate {
	return &Gate{cfg: cfg, build: Build}
}

// EnsureBootstrapped returns the shared App, building it on first use.
func (g *Gate) EnsureBootstrapped(ctx context.Context) (*App, error) {
	if g.ready.Load() {
		return g.app, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ready.Load() {
		return g.app, nil
	}

	app, err := g.build(ctx, g.cfg)
	if err != nil {
		return nil, err
	}
	g.app = app
	g.ready.Store(true)
	return app, nil
}

// Ready reports whether bootstrap has completed.
func (g *Gate) Ready() bool {
	return g.ready.Load()
}
