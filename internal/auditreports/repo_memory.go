package auditreports

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu     sync.RWMutex
	assets []Asset
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo(assets ...Asset) *MemoryRepo {
	return &MemoryRepo{assets: append([]Asset(nil), assets...)}
}

// Add stores an asset.
func (r *MemoryRepo) Add(a Asset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assets = append(r.assets, a)
}

// ListAssets returns a copy of the stored assets.
func (r *MemoryRepo) ListAssets(ctx context.Context) ([]Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Asset(nil), r.assets...), nil
}

var _ Repo = (*MemoryRepo)(nil)
