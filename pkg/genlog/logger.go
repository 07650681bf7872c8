package genlog

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sessionforge/sessionforge/pkg/models"
)

// Logger writes and queries generation invocation records in a dedicated
// SQLite database. A background goroutine enforces the retention period.
type Logger struct {
	db   *sql.DB
	cfg  models.GenLogConfig
	done chan struct{}
	wg   sync.WaitGroup
}

const createGenLogTable = `
CREATE TABLE IF NOT EXISTS gen_log (
	request_id       TEXT PRIMARY KEY,
	cache_key_prefix TEXT NOT NULL,
	variant_index    INTEGER NOT NULL,
	category         TEXT NOT NULL,
	session_type     TEXT NOT NULL,
	cache_hit        INTEGER NOT NULL,
	latency_ms       INTEGER NOT NULL,
	created_at       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_gen_log_category ON gen_log(category);
CREATE INDEX IF NOT EXISTS idx_gen_log_created ON gen_log(created_at);
CREATE INDEX IF NOT EXISTS idx_gen_log_prefix ON gen_log(cache_key_prefix);
`

// New opens the generation log database and starts the retention loop.
func New(cfg models.GenLogConfig) (*Logger, error) {
	db, err := sql.Open("sqlite", cfg.DBPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open genlog db: %w", err)
	}

	if _, err := db.Exec(createGenLogTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate genlog db: %w", err)
	}

	l := &Logger{
		db:   db,
		cfg:  cfg,
		done: make(chan struct{}),
	}

	l.wg.Add(1)
	go l.retentionLoop()

	return l, nil
}

// Record inserts one invocation record.
func (l *Logger) Record(ctx context.Context, rec models.GenRecord) error {
	if l == nil || l.db == nil {
		return nil
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO gen_log
		 (request_id, cache_key_prefix, variant_index, category, session_type, cache_hit, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID, rec.CacheKeyPrefix, rec.VariantIndex, rec.Category, rec.SessionType,
		rec.CacheHit, rec.LatencyMs, rec.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("record generation: %w", err)
	}
	return nil
}

// Query returns invocation records matching the given options, newest
// first.
func (l *Logger) Query(ctx context.Context, opts models.GenQueryOpts) ([]models.GenRecord, error) {
	q := `SELECT request_id, cache_key_prefix, variant_index, category, session_type, cache_hit, latency_ms, created_at
	      FROM gen_log WHERE 1=1`
	var args []any

	if opts.RequestID != "" {
		q += " AND request_id = ?"
		args = append(args, opts.RequestID)
	}
	if opts.Category != "" {
		q += " AND category = ?"
		args = append(args, opts.Category)
	}
	if opts.CacheKeyPrefix != "" {
		q += " AND cache_key_prefix = ?"
		args = append(args, opts.CacheKeyPrefix)
	}
	if !opts.Since.IsZero() {
		q += " AND created_at >= ?"
		args = append(args, opts.Since.Unix())
	}
	if opts.HitsOnly {
		q += " AND cache_hit = 1"
	}

	q += " ORDER BY created_at DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	q += " LIMIT ?"
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query genlog: %w", err)
	}
	defer rows.Close()

	var records []models.GenRecord
	for rows.Next() {
		var (
			r       models.GenRecord
			created int64
		)
		if err := rows.Scan(&r.RequestID, &r.CacheKeyPrefix, &r.VariantIndex, &r.Category,
			&r.SessionType, &r.CacheHit, &r.LatencyMs, &created); err != nil {
			return nil, fmt.Errorf("scan genlog row: %w", err)
		}
		r.CreatedAt = time.Unix(created, 0).UTC()
		records = append(records, r)
	}
	return records, rows.Err()
}

// Stats returns invocation and hit counts grouped by category and day.
func (l *Logger) Stats(ctx context.Context) ([]models.GenStat, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT category, date(created_at, 'unixepoch') AS day, COUNT(*), SUM(cache_hit)
		 FROM gen_log GROUP BY category, day ORDER BY day DESC, category`)
	if err != nil {
		return nil, fmt.Errorf("genlog stats: %w", err)
	}
	defer rows.Close()

	var stats []models.GenStat
	for rows.Next() {
		var (
			s   models.GenStat
			day sql.NullString
		)
		if err := rows.Scan(&s.Category, &day, &s.Count, &s.Hits); err != nil {
			return nil, fmt.Errorf("scan genlog stat: %w", err)
		}
		s.Day = day.String
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// Cleanup deletes records older than the configured retention period.
func (l *Logger) Cleanup(ctx context.Context) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -l.cfg.RetentionDays)
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM gen_log WHERE created_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("genlog cleanup: %w", err)
	}
	return res.RowsAffected()
}

// Close stops the retention goroutine and closes the database.
func (l *Logger) Close() error {
	close(l.done)
	l.wg.Wait()
	return l.db.Close()
}

func (l *Logger) retentionLoop() {
	defer l.wg.Done()
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			_, _ = l.Cleanup(context.Background())
		}
	}
}
