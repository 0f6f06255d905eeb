package memory

import (
	"context"
	"io"
	"iter"
	"sort"
	"strings"
	"sync"

	"carelog-backend/internal/shared/storage/blob"
)

// Store is an in-memory blob.Store used in dev mode and tests.
type Store struct {
	mu         sync.RWMutex
	containers map[string]map[string][]byte
	deleteErr  map[string]error
	deletes    map[string]int
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		containers: make(map[string]map[string][]byte),
		deleteErr:  make(map[string]error),
		deletes:    make(map[string]int),
	}
}

// List yields a sorted snapshot of the container.
func (s *Store) List(ctx context.Context, container string) iter.Seq2[blob.Blob, error] {
	return func(yield func(blob.Blob, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(blob.Blob{}, err)
			return
		}
		s.mu.RLock()
		entries := make([]blob.Blob, 0, len(s.containers[container]))
		for name, data := range s.containers[container] {
			entries = append(entries, blob.Blob{Name: name, Size: int64(len(data))})
		}
		s.mu.RUnlock()

		sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
		for _, b := range entries {
			if !yield(b, nil) {
				return
			}
		}
	}
}

// Delete removes a blob; missing blobs are ignored.
func (s *Store) Delete(ctx context.Context, container, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := container + "/" + name
	s.deletes[key]++
	if err := s.deleteErr[key]; err != nil {
		return err
	}
	delete(s.containers[container], name)
	return nil
}

// Put stores the reader contents.
func (s *Store) Put(ctx context.Context, container, name, contentType string, r io.Reader) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	_ = contentType
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.containers[container] == nil {
		s.containers[container] = make(map[string][]byte)
	}
	s.containers[container][name] = data
	return int64(len(data)), nil
}

// FailDelete makes every Delete of container/name return err.
func (s *Store) FailDelete(container, name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteErr[container+"/"+name] = err
}

// DeleteCalls reports how many times Delete was called for container/name.
func (s *Store) DeleteCalls(container, name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deletes[container+"/"+name]
}

// Has reports whether container/name exists.
func (s *Store) Has(container, name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.containers[container][name]
	return ok
}

// Names returns the sorted blob names of a container.
func (s *Store) Names(container string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.containers[container]))
	for name := range s.containers[container] {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// String renders the store contents for test failure messages.
func (s *Store) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var parts []string
	for container, blobs := range s.containers {
		for name := range blobs {
			parts = append(parts, container+"/"+name)
		}
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

var (
	_ blob.Store  = (*Store)(nil)
	_ blob.Writer = (*Store)(nil)
)
