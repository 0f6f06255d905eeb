package attachments

import (
	"context"
	"sort"
	"strconv"
	"sync"
)

// MemoryRepo is an in-memory implementation of Repo.
type MemoryRepo struct {
	mu          sync.RWMutex
	attachments map[string]Attachment
	committed   map[string]struct{}
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		attachments: make(map[string]Attachment),
		committed:   make(map[string]struct{}),
	}
}

// Add stores an attachment.
func (r *MemoryRepo) Add(a Attachment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attachments[rowKey(a.ID, a.UpdateID)] = a
}

// Commit marks an update as durably committed.
func (r *MemoryRepo) Commit(updateID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed[updateID] = struct{}{}
}

// Has reports whether the attachment row exists.
func (r *MemoryRepo) Has(id int64, updateID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.attachments[rowKey(id, updateID)]
	return ok
}

// ListUncommitted returns attachments without a committed update, ordered by id.
func (r *MemoryRepo) ListUncommitted(ctx context.Context) ([]Attachment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Attachment
	for _, a := range r.attachments {
		if _, ok := r.committed[a.UpdateID]; ok {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Delete removes an attachment row if present.
func (r *MemoryRepo) Delete(ctx context.Context, id int64, updateID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.attachments, rowKey(id, updateID))
	return nil
}

func rowKey(id int64, updateID string) string {
	return updateID + "/" + strconv.FormatInt(id, 10)
}

var _ Repo = (*MemoryRepo)(nil)
