// Package database implements the optional SQLite fingerprint cache. The
// cache is a pure accelerator: a fresh row short-circuits the normalize and
// extract work for an unchanged screenshot, and cached and uncached runs
// produce identical output tables.
package database

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"layoutdedupe/fingerprint"

	_ "github.com/mattn/go-sqlite3"
)

// InitCache opens the cache database, creating the schema if needed.
func InitCache(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS fingerprints (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		path TEXT NOT NULL,
		site_tag TEXT,
		params TEXT,
		modified_at TEXT,
		size INTEGER,
		width INTEGER,
		height INTEGER,
		hash_bits TEXT,
		edge_grid BLOB,
		row_proj BLOB,
		col_proj BLOB,
		created_at TEXT,
		UNIQUE(path, site_tag)
	);
	CREATE INDEX IF NOT EXISTS idx_fp_path ON fingerprints(path);`

	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot create cache schema: %w", err)
	}

	return db, nil
}

// CachedFingerprint is one cache row.
type CachedFingerprint struct {
	Path        string
	SiteTag     string
	Params      string
	ModifiedAt  string
	Size        int64
	Width       int
	Height      int
	Fingerprint *fingerprint.Fingerprint
}

// Lookup returns the cached fingerprint for (path, siteTag), or nil when no
// row exists. A row whose stored vectors were computed under a different
// grid size comes back with a nil Fingerprint: it is stale, not corrupt.
// Freshness against mtime, size and the fingerprint parameter signature is
// the caller's decision.
func Lookup(db *sql.DB, path, siteTag string, gridSize int) (*CachedFingerprint, error) {
	row := db.QueryRow(`SELECT params, modified_at, size, width, height, hash_bits, edge_grid, row_proj, col_proj
		FROM fingerprints WHERE path = ? AND site_tag = ?`, path, siteTag)

	var rec CachedFingerprint
	var hashBits string
	var edgeGrid, rowProj, colProj []byte
	err := row.Scan(&rec.Params, &rec.ModifiedAt, &rec.Size, &rec.Width, &rec.Height, &hashBits, &edgeGrid, &rowProj, &colProj)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache lookup for %s: %w", path, err)
	}

	rec.Path = path
	rec.SiteTag = siteTag

	fp := &fingerprint.Fingerprint{GridSize: gridSize}
	if err := decodeHashBits(hashBits, &fp.HashBits); err != nil {
		return nil, fmt.Errorf("corrupt cached hash for %s: %w", path, err)
	}
	fp.EdgeGrid = decodeFloat32s(edgeGrid)
	fp.RowProj = decodeFloat64s(rowProj)
	fp.ColProj = decodeFloat64s(colProj)
	if len(fp.EdgeGrid) != gridSize*gridSize || len(fp.RowProj) != gridSize || len(fp.ColProj) != gridSize {
		// Cached under a different grid size; leave Fingerprint nil so the
		// caller recomputes instead of flagging corruption.
		return &rec, nil
	}
	rec.Fingerprint = fp
	return &rec, nil
}

// Store upserts a fingerprint row for (path, siteTag).
func Store(db *sql.DB, rec CachedFingerprint) error {
	stmt, err := db.Prepare(`
		INSERT OR REPLACE INTO fingerprints (
			path, site_tag, params, modified_at, size, width, height,
			hash_bits, edge_grid, row_proj, col_proj, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("cannot prepare cache statement for %s: %w", rec.Path, err)
	}
	defer stmt.Close()

	fp := rec.Fingerprint
	_, err = stmt.Exec(
		rec.Path,
		rec.SiteTag,
		rec.Params,
		rec.ModifiedAt,
		rec.Size,
		rec.Width,
		rec.Height,
		encodeHashBits(fp.HashBits),
		encodeFloat32s(fp.EdgeGrid),
		encodeFloat64s(fp.RowProj),
		encodeFloat64s(fp.ColProj),
		time.Now().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("cannot store fingerprint for %s: %w", rec.Path, err)
	}
	return nil
}

// CacheStats summarizes cache contents for the run report.
type CacheStats struct {
	TotalRows int
	SiteTags  int
}

// GetCacheStats counts rows and distinct site tags.
func GetCacheStats(db *sql.DB) (*CacheStats, error) {
	var stats CacheStats
	if err := db.QueryRow("SELECT COUNT(*) FROM fingerprints").Scan(&stats.TotalRows); err != nil {
		return nil, fmt.Errorf("failed to count cache rows: %w", err)
	}
	if err := db.QueryRow("SELECT COUNT(DISTINCT site_tag) FROM fingerprints").Scan(&stats.SiteTags); err != nil {
		return nil, fmt.Errorf("failed to count site tags: %w", err)
	}
	return &stats, nil
}

// encodeHashBits renders the packed hash words as colon-separated hex, one
// word per hash.
func encodeHashBits(words [4]uint64) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = fmt.Sprintf("%016x", w)
	}
	return strings.Join(parts, ":")
}

func decodeHashBits(s string, words *[4]uint64) error {
	parts := strings.Split(s, ":")
	if len(parts) != len(words) {
		return fmt.Errorf("expected %d hash words, got %d", len(words), len(parts))
	}
	for i, p := range parts {
		w, err := strconv.ParseUint(p, 16, 64)
		if err != nil {
			return err
		}
		words[i] = w
	}
	return nil
}
