package gencache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sessionforge/sessionforge/pkg/models"
)

// ErrNotFound is returned by EntryStore.Get when no row exists for the
// requested (cache key, variant) pair.
var ErrNotFound = errors.New("cache entry not found")

// EntryStore is the durable keyed storage behind the cache engine. All
// mutations must be atomic per statement; Insert must be insert-if-absent
// so concurrent writers for the same pair resolve to a single live row.
type EntryStore interface {
	// Get returns the entry for (cacheKey, variant), expired or not.
	// Returns ErrNotFound when no row exists.
	Get(ctx context.Context, cacheKey string, variant int) (*models.CacheEntry, error)
	// Insert stores the entry unless one already exists for its pair.
	// Reports whether the row landed; a concurrent first writer wins.
	Insert(ctx context.Context, entry models.CacheEntry) (bool, error)
	// Touch records a successful read: hit count up by one, last accessed
	// moved forward (never backward).
	Touch(ctx context.Context, cacheKey string, variant int, now time.Time) error
	// Delete removes a single entry. Idempotent.
	Delete(ctx context.Context, cacheKey string, variant int) error
	// DeleteExpired removes every entry whose expiry is in the past.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	// DeleteOldest removes the n entries with the oldest last-accessed times.
	DeleteOldest(ctx context.Context, n int64) (int64, error)
	// Count returns the number of stored entries, live or expired.
	Count(ctx context.Context) (int64, error)
	// Stats aggregates entry counts and access timestamps.
	Stats(ctx context.Context) (models.CacheStats, error)
	// Clear removes all entries and returns how many were removed.
	Clear(ctx context.Context) (int64, error)
	// Close releases the underlying storage.
	Close() error
}

// SQLiteStore implements EntryStore with a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const createCacheTable = `
CREATE TABLE IF NOT EXISTS outline_cache (
	cache_key     TEXT NOT NULL,
	variant_index INTEGER NOT NULL,
	request_hash  TEXT NOT NULL,
	artifact      BLOB NOT NULL,
	created_at    INTEGER NOT NULL,
	last_accessed INTEGER NOT NULL,
	hit_count     INTEGER NOT NULL DEFAULT 0,
	expires_at    INTEGER NOT NULL,
	PRIMARY KEY (cache_key, variant_index)
);
CREATE INDEX IF NOT EXISTS idx_outline_cache_expires ON outline_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_outline_cache_accessed ON outline_cache(last_accessed);
`

// NewSQLiteStore opens the cache database and runs auto-migration.
// Timestamps are stored as unix seconds so aggregate scans stay typed.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	if _, err := db.Exec(createCacheTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Get returns the stored entry for (cacheKey, variant), or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, cacheKey string, variant int) (*models.CacheEntry, error) {
	var (
		e        models.CacheEntry
		created  int64
		accessed int64
		expires  int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT cache_key, variant_index, request_hash, artifact, created_at, last_accessed, hit_count, expires_at
		 FROM outline_cache WHERE cache_key = ? AND variant_index = ?`,
		cacheKey, variant,
	).Scan(&e.CacheKey, &e.VariantIndex, &e.RequestHash, &e.Artifact, &created, &accessed, &e.HitCount, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get cache entry: %w", err)
	}

	e.CreatedAt = time.Unix(created, 0).UTC()
	e.LastAccessed = time.Unix(accessed, 0).UTC()
	e.ExpiresAt = time.Unix(expires, 0).UTC()
	return &e, nil
}

// Insert stores the entry unless its (cache_key, variant_index) pair is
// already present. The conflict clause makes the first writer win without
// an error on either side.
func (s *SQLiteStore) Insert(ctx context.Context, entry models.CacheEntry) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO outline_cache
		 (cache_key, variant_index, request_hash, artifact, created_at, last_accessed, hit_count, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(cache_key, variant_index) DO NOTHING`,
		entry.CacheKey, entry.VariantIndex, entry.RequestHash, []byte(entry.Artifact),
		entry.CreatedAt.Unix(), entry.LastAccessed.Unix(), entry.HitCount, entry.ExpiresAt.Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("insert cache entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert cache entry: %w", err)
	}
	return n > 0, nil
}

// Touch bumps the hit count and moves last_accessed forward. MAX keeps the
// timestamp monotonic under concurrent readers.
func (s *SQLiteStore) Touch(ctx context.Context, cacheKey string, variant int, now time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE outline_cache
		 SET hit_count = hit_count + 1, last_accessed = MAX(last_accessed, ?)
		 WHERE cache_key = ? AND variant_index = ?`,
		now.Unix(), cacheKey, variant,
	)
	if err != nil {
		return fmt.Errorf("touch cache entry: %w", err)
	}
	return nil
}

// Delete removes a single entry. Deleting a missing entry is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, cacheKey string, variant int) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM outline_cache WHERE cache_key = ? AND variant_index = ?`,
		cacheKey, variant,
	)
	if err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

// DeleteExpired removes every entry whose expiry is in the past.
func (s *SQLiteStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM outline_cache WHERE expires_at < ?`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("delete expired entries: %w", err)
	}
	return res.RowsAffected()
}

// DeleteOldest removes the n least recently accessed entries.
func (s *SQLiteStore) DeleteOldest(ctx context.Context, n int64) (int64, error) {
	if n <= 0 {
		return 0, nil
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM outline_cache WHERE rowid IN (
			SELECT rowid FROM outline_cache ORDER BY last_accessed ASC, created_at ASC LIMIT ?)`,
		n,
	)
	if err != nil {
		return 0, fmt.Errorf("delete oldest entries: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of stored entries.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM outline_cache`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count cache entries: %w", err)
	}
	return count, nil
}

// Stats aggregates entry counts and access bounds in a single scan.
func (s *SQLiteStore) Stats(ctx context.Context) (models.CacheStats, error) {
	var (
		stats  models.CacheStats
		oldest sql.NullInt64
		newest sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(hit_count), 0), MIN(last_accessed), MAX(last_accessed)
		 FROM outline_cache`,
	).Scan(&stats.TotalEntries, &stats.TotalHits, &oldest, &newest)
	if err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}

	if stats.TotalEntries > 0 {
		stats.AvgHitsPerEntry = float64(stats.TotalHits) / float64(stats.TotalEntries)
	}
	if oldest.Valid {
		t := time.Unix(oldest.Int64, 0).UTC()
		stats.OldestAccess = &t
	}
	if newest.Valid {
		t := time.Unix(newest.Int64, 0).UTC()
		stats.NewestAccess = &t
	}
	return stats, nil
}

// Clear removes all entries.
func (s *SQLiteStore) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM outline_cache`)
	if err != nil {
		return 0, fmt.Errorf("clear cache: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

var _ EntryStore = (*SQLiteStore)(nil)
