// Package catalog indexes demuxed USM files in a local SQLite database,
// so a batch extraction run can skip files it has already processed and
// answer "which tracks came out of this file" without re-opening it.
// This sits beside the core codec rather than inside it: the core stays
// usable as a standalone library even for callers who never touch a
// catalog.
package catalog

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/usmtool/usmtool/internal/usm"
)

// Catalog is a handle to the SQLite-backed index.
type Catalog struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS files (
	path          TEXT PRIMARY KEY,
	version       INTEGER,
	opened_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS tracks (
	id            TEXT PRIMARY KEY,
	file_path     TEXT NOT NULL REFERENCES files(path),
	kind          TEXT NOT NULL,
	channel       INTEGER NOT NULL,
	crid_filename TEXT NOT NULL,
	span_count    INTEGER NOT NULL,
	total_bytes   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_tracks_filename ON tracks(crid_filename);
`

// Open creates (if needed) and opens the SQLite database at path.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: create schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Close closes the underlying database handle.
func (c *Catalog) Close() error { return c.db.Close() }

// TrackRecord is one row of the tracks table, denormalised for read
// convenience.
type TrackRecord struct {
	ID           string
	FilePath     string
	Kind         string
	Channel      int
	CridFilename string
	SpanCount    int
	TotalBytes   uint64
}

// Record inserts or replaces a file's row and its tracks' rows. It is
// idempotent: re-recording the same file replaces its prior tracks
// rather than appending duplicates.
func (c *Catalog) Record(u *usm.Usm) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("catalog: begin: %w", err)
	}
	defer tx.Rollback()

	var version any
	if v, ok := u.Version(); ok {
		version = v
	}

	if _, err := tx.Exec(
		`INSERT INTO files (path, version, opened_at) VALUES (?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET version = excluded.version, opened_at = excluded.opened_at`,
		u.Path(), version, time.Now().UTC().Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("catalog: upsert file: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM tracks WHERE file_path = ?`, u.Path()); err != nil {
		return fmt.Errorf("catalog: clear tracks: %w", err)
	}

	insertKind := func(kind string, tracks []*usm.Track) error {
		for _, t := range tracks {
			filename, err := t.Crid.GetString("filename")
			if err != nil {
				filename = ""
			}
			if _, err := tx.Exec(
				`INSERT INTO tracks (id, file_path, kind, channel, crid_filename, span_count, total_bytes)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				uuid.NewString(), u.Path(), kind, t.ChannelNumber, filename, t.SpanCount(), t.TotalBytes(),
			); err != nil {
				return fmt.Errorf("catalog: insert track: %w", err)
			}
		}
		return nil
	}

	if err := insertKind("video", u.Videos()); err != nil {
		return err
	}
	if err := insertKind("audio", u.Audios()); err != nil {
		return err
	}
	if err := insertKind("alpha", u.Alphas()); err != nil {
		return err
	}

	return tx.Commit()
}

// Lookup returns every catalogued track whose CRID filename matches
// filename exactly.
func (c *Catalog) Lookup(filename string) ([]TrackRecord, error) {
	rows, err := c.db.Query(
		`SELECT id, file_path, kind, channel, crid_filename, span_count, total_bytes
		 FROM tracks WHERE crid_filename = ? ORDER BY file_path, channel`,
		filename,
	)
	if err != nil {
		return nil, fmt.Errorf("catalog: lookup %q: %w", filename, err)
	}
	defer rows.Close()

	var out []TrackRecord
	for rows.Next() {
		var r TrackRecord
		if err := rows.Scan(&r.ID, &r.FilePath, &r.Kind, &r.Channel, &r.CridFilename, &r.SpanCount, &r.TotalBytes); err != nil {
			return nil, fmt.Errorf("catalog: scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListFiles returns every path this catalog has recorded.
func (c *Catalog) ListFiles() ([]string, error) {
	rows, err := c.db.Query(`SELECT path FROM files ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("catalog: list files: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("catalog: scan path: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
