package staging

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type memoryItem struct {
	entry     Entry
	expiresAt time.Time
}

// MemoryStore is an in-memory Store with lazy expiry.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	now   func() time.Time
}

// NewMemoryStore constructs a MemoryStore using the wall clock.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

// NewMemoryStoreWithClock constructs a MemoryStore reading time from now.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		items: make(map[string]memoryItem),
		now:   now,
	}
}

// Get returns the entry while it is within its TTL.
func (s *MemoryStore) Get(ctx context.Context, collection, key string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[memoryKey(collection, key)]
	if !ok || !s.now().Before(item.expiresAt) {
		return Entry{}, ErrNotFound
	}
	return item.entry, nil
}

// Set stores the entry for ttlSeconds.
func (s *MemoryStore) Set(ctx context.Context, collection string, ttlSeconds int, key string, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttlSeconds <= 0 {
		return fmt.Errorf("ttl must be positive, got %d", ttlSeconds)
	}
	entry.UpdateID = key
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[memoryKey(collection, key)] = memoryItem{
		entry:     entry,
		expiresAt: s.now().Add(time.Duration(ttlSeconds) * time.Second),
	}
	return nil
}

// Delete removes the entry if present.
func (s *MemoryStore) Delete(ctx context.Context, collection, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, memoryKey(collection, key))
	return nil
}

// PurgeExpired drops entries whose TTL elapsed.
func (s *MemoryStore) PurgeExpired(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	purged := 0
	for k, item := range s.items {
		if !now.Before(item.expiresAt) {
			delete(s.items, k)
			purged++
		}
	}
	return purged, nil
}

func memoryKey(collection, key string) string {
	return collection + "\x00" + key
}

var (
	_ Store  = (*MemoryStore)(nil)
	_ Purger = (*MemoryStore)(nil)
)
