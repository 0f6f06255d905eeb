package staging

import "context"

// Store is a TTL keyed cache of in-authoring updates, grouped by collection.
//
// Get never returns an entry whose TTL has elapsed. There is no transactional
// coupling with the durable store.
type Store interface {
	Get(ctx context.Context, collection, key string) (Entry, error)
	Set(ctx context.Context, collection string, ttlSeconds int, key string, entry Entry) error
	Delete(ctx context.Context, collection, key string) error
}

// Purger physically removes expired entries.
type Purger interface {
	PurgeExpired(ctx context.Context) (int, error)
}
