package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const DefaultDBTimeout = 5 * time.Second

type DB struct {
	sql *sql.DB
}

func Open(path string, timeout time.Duration) (*DB, error) {
	if timeout <= 0 {
		timeout = DefaultDBTimeout
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", path, timeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// Background loads record assets concurrently; one connection keeps
	// writers from tripping over each other.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS assets (
  path          TEXT PRIMARY KEY,
  size          INTEGER NOT NULL,
  origin_url    TEXT,
  fetched_at    TEXT NOT NULL,
  last_used_at  TEXT NOT NULL,
  hits          INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_assets_used ON assets(last_used_at);
CREATE TABLE IF NOT EXISTS progress (
  subject        INTEGER PRIMARY KEY,
  from_date      TEXT NOT NULL,
  on_event       INTEGER NOT NULL DEFAULT 0,
  on_experience  INTEGER NOT NULL DEFAULT 0,
  session_id     TEXT,
  updated_at     TEXT NOT NULL
);
    `); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// RecordAsset upserts a freshly downloaded asset.
func (d *DB) RecordAsset(ctx context.Context, logicalPath string, size int64, url string) error {
	now := formatTime(time.Now())
	_, err := d.sql.ExecContext(ctx, `
INSERT INTO assets(path, size, origin_url, fetched_at, last_used_at, hits) VALUES(?,?,?,?,?,0)
ON CONFLICT(path) DO UPDATE SET size = excluded.size, origin_url = excluded.origin_url, fetched_at = excluded.fetched_at, last_used_at = excluded.last_used_at`,
		logicalPath, size, nullIfEmpty(url), now, now)
	return err
}

// TouchAsset marks a cache hit. Unknown paths (files cached before the
// manifest existed) are ignored.
func (d *DB) TouchAsset(ctx context.Context, logicalPath string) error {
	_, err := d.sql.ExecContext(ctx, `UPDATE assets SET last_used_at = ?, hits = hits + 1 WHERE path = ?`, formatTime(time.Now()), logicalPath)
	return err
}

// ListOptions controls selection when listing assets.
type ListOptions struct {
	Prefix string
	Since  time.Time
	Limit  int
}

// ListAssets returns manifest rows ordered by path.
func (d *DB) ListAssets(ctx context.Context, opts ListOptions) ([]Asset, error) {
	where := "WHERE 1=1"
	args := []interface{}{}
	if opts.Prefix != "" {
		where += " AND path LIKE ?"
		args = append(args, opts.Prefix+"%")
	}
	if !opts.Since.IsZero() {
		where += " AND fetched_at >= ?"
		args = append(args, formatTime(opts.Since))
	}
	q := "SELECT path, size, origin_url, fetched_at, last_used_at, hits FROM assets " + where + " ORDER BY path"
	if opts.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := d.sql.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Asset
	for rows.Next() {
		var a Asset
		var urlNS sql.NullString
		var fetched, used string
		if err := rows.Scan(&a.Path, &a.Size, &urlNS, &fetched, &used, &a.Hits); err != nil {
			return nil, err
		}
		a.URL = urlNS.String
		a.FetchedAt = parseTime(fetched)
		a.LastUsedAt = parseTime(used)
		out = append(out, a)
	}
	return out, rows.Err()
}

// GetStats groups the manifest by the first path segment.
func (d *DB) GetStats(ctx context.Context) ([]CacheStats, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT path, size FROM assets")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byDir := map[string]*CacheStats{}
	for rows.Next() {
		var p string
		var size int64
		if err := rows.Scan(&p, &size); err != nil {
			return nil, err
		}
		dir := topDirectory(p)
		s, ok := byDir[dir]
		if !ok {
			s = &CacheStats{Directory: dir}
			byDir[dir] = s
		}
		s.AssetCount++
		s.TotalBytes += size
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	stats := make([]CacheStats, 0, len(byDir))
	for _, s := range byDir {
		stats = append(stats, *s)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Directory < stats[j].Directory })
	return stats, nil
}

// Forget drops every manifest row and saved progress.
func (d *DB) Forget(ctx context.Context) error {
	_, err := d.sql.ExecContext(ctx, "DELETE FROM assets; DELETE FROM progress;")
	return err
}

func topDirectory(p string) string {
	p = strings.TrimPrefix(p, "/")
	if i := strings.Index(p, "/"); i >= 0 {
		return p[:i]
	}
	return "."
}

// fixed width so text comparison in SQL orders correctly
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
