package staging

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PGStore implements Store on a Postgres table with an expires_at column.
type PGStore struct {
	DB *sql.DB
}

// Get returns the live entry for key.
func (s *PGStore) Get(ctx context.Context, collection, key string) (Entry, error) {
	const query = `
SELECT value
FROM staging_entries
WHERE collection = $1 AND key = $2 AND expires_at > now()`

	var raw []byte
	if err := s.DB.QueryRowContext(ctx, query, collection, key).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return Entry{}, fmt.Errorf("decode staging entry %s/%s: %w", collection, key, err)
	}
	entry.UpdateID = key
	return entry, nil
}

// Set upserts the entry and restarts its TTL.
func (s *PGStore) Set(ctx context.Context, collection string, ttlSeconds int, key string, entry Entry) error {
	if ttlSeconds <= 0 {
		return fmt.Errorf("ttl must be positive, got %d", ttlSeconds)
	}
	const query = `
INSERT INTO staging_entries (collection, key, value, expires_at)
VALUES ($1, $2, $3, now() + make_interval(secs => $4))
ON CONFLICT (collection, key)
DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode staging entry: %w", err)
	}
	_, err = s.DB.ExecContext(ctx, query, collection, key, payload, ttlSeconds)
	return err
}

// Delete removes the entry if present.
func (s *PGStore) Delete(ctx context.Context, collection, key string) error {
	const query = `DELETE FROM staging_entries WHERE collection = $1 AND key = $2`
	_, err := s.DB.ExecContext(ctx, query, collection, key)
	return err
}

// PurgeExpired deletes rows whose TTL elapsed.
func (s *PGStore) PurgeExpired(ctx context.Context) (int, error) {
	const query = `DELETE FROM staging_entries WHERE expires_at <= now()`
	res, err := s.DB.ExecContext(ctx, query)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

var (
	_ Store  = (*PGStore)(nil)
	_ Purger = (*PGStore)(nil)
)
