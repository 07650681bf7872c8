package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sessionforge/sessionforge/pkg/gencache"
	"github.com/sessionforge/sessionforge/pkg/models"
)

// Recorder persists cache hit events and answers aggregate queries over
// them. It implements the cache engine's hit sink; recording failures are
// the engine's to ignore, so methods here just report errors honestly.
type Recorder struct {
	db *sql.DB
}

const createHitEventsTable = `
CREATE TABLE IF NOT EXISTS hit_events (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	cache_key_prefix TEXT NOT NULL,
	variant_index    INTEGER NOT NULL,
	hit_count        INTEGER NOT NULL,
	category         TEXT NOT NULL,
	session_type     TEXT NOT NULL,
	created_at       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_hit_events_category ON hit_events(category, session_type);
CREATE INDEX IF NOT EXISTS idx_hit_events_created ON hit_events(created_at);
`

// New opens the analytics database and runs auto-migration.
func New(dbPath string) (*Recorder, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open analytics db: %w", err)
	}

	if _, err := db.Exec(createHitEventsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate analytics db: %w", err)
	}

	return &Recorder{db: db}, nil
}

// RecordHit stores one hit event.
func (r *Recorder) RecordHit(ctx context.Context, ev models.HitEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO hit_events (cache_key_prefix, variant_index, hit_count, category, session_type, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ev.CacheKeyPrefix, ev.VariantIndex, ev.HitCount, ev.Category, ev.SessionType, time.Now().UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("record hit: %w", err)
	}
	return nil
}

// Summary aggregates hits grouped by category and session type, most
// recently active first.
func (r *Recorder) Summary(ctx context.Context) ([]models.HitSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT category, session_type, COUNT(*), MAX(created_at)
		 FROM hit_events GROUP BY category, session_type
		 ORDER BY MAX(created_at) DESC`)
	if err != nil {
		return nil, fmt.Errorf("hit summary: %w", err)
	}
	defer rows.Close()

	var summaries []models.HitSummary
	for rows.Next() {
		var (
			s    models.HitSummary
			last int64
		)
		if err := rows.Scan(&s.Category, &s.SessionType, &s.Events, &last); err != nil {
			return nil, fmt.Errorf("scan hit summary: %w", err)
		}
		s.LastHitAt = time.Unix(last, 0).UTC()
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// TopPrefixes returns the key prefixes with the most recorded hits, a quick
// view of which cached generations pay for themselves.
func (r *Recorder) TopPrefixes(ctx context.Context, limit int) (map[string]int64, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT cache_key_prefix, COUNT(*) FROM hit_events
		 GROUP BY cache_key_prefix ORDER BY COUNT(*) DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("top prefixes: %w", err)
	}
	defer rows.Close()

	top := make(map[string]int64)
	for rows.Next() {
		var (
			prefix string
			n      int64
		)
		if err := rows.Scan(&prefix, &n); err != nil {
			return nil, fmt.Errorf("scan top prefix: %w", err)
		}
		top[prefix] = n
	}
	return top, rows.Err()
}

// Close releases the database connection.
func (r *Recorder) Close() error {
	return r.db.Close()
}

var _ gencache.HitSink = (*Recorder)(nil)
