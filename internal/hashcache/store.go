// Package hashcache implements the persistent (side, relpath, size, mtime)
// → hash cache (C2). Reads return a value only when all four key fields
// match the stored row exactly, so a changed file transparently misses the
// cache instead of returning a stale hash.
package hashcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/localmodels/modellake/internal/pathmodel"
	"github.com/localmodels/modellake/internal/sides"
)

const walJournalSizeLimit = 67108864 // 64 MiB

// Store is a SQLite-backed hash cache. One instance is shared by both
// sides; rows are keyed by (side, relpath).
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	get       *sql.Stmt
	put       *sql.Stmt
	invalidate *sql.Stmt
}

// Open opens (creating if necessary) the hash cache database at dbPath,
// applies migrations, and prepares statements. Use ":memory:" for tests.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("hashcache: open sqlite: %w", err)
	}

	// Sole-writer discipline: one connection avoids SQLITE_BUSY under the
	// engine's single-writer-per-row contract.
	db.SetMaxOpenConns(1)

	if err := setPragmas(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, logger: logger}
	if err := s.prepare(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("hashcache: prepare statements: %w", err)
	}

	return s, nil
}

func setPragmas(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		fmt.Sprintf("PRAGMA journal_size_limit = %d", walJournalSizeLimit),
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("hashcache: pragma %q: %w", stmt, err)
		}
	}

	return nil
}

func (s *Store) prepare(ctx context.Context) error {
	var err error

	if s.get, err = s.db.PrepareContext(ctx,
		`SELECT hash FROM hash_entries WHERE side=? AND relpath=? AND size=? AND mtime_ms=?`); err != nil {
		return err
	}

	if s.put, err = s.db.PrepareContext(ctx,
		`INSERT INTO hash_entries (side, relpath, size, mtime_ms, hash, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(side, relpath) DO UPDATE SET
		   size=excluded.size, mtime_ms=excluded.mtime_ms, hash=excluded.hash, updated_at=excluded.updated_at`); err != nil {
		return err
	}

	if s.invalidate, err = s.db.PrepareContext(ctx,
		`DELETE FROM hash_entries WHERE side=? AND relpath=?`); err != nil {
		return err
	}

	return nil
}

// Get returns the cached hash for (side, relpath) if the stored size and
// mtime match exactly, otherwise ("", false).
func (s *Store) Get(ctx context.Context, side sides.Side, relpath pathmodel.RelPath, size int64, mtime time.Time) (string, bool, error) {
	var hash string

	err := s.get.QueryRowContext(ctx, side.String(), relpath.String(), size, mtime.UnixMilli()).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}

	if err != nil {
		return "", false, fmt.Errorf("hashcache: get: %w", err)
	}

	return hash, true, nil
}

// Put upserts the hash for (side, relpath, size, mtime). Each write is a
// single atomic statement: a reader sees either the old row, the new row, or
// no row — never a torn write.
func (s *Store) Put(ctx context.Context, side sides.Side, relpath pathmodel.RelPath, size int64, mtime time.Time, hash string) error {
	_, err := s.put.ExecContext(ctx, side.String(), relpath.String(), size, mtime.UnixMilli(), hash, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("hashcache: put: %w", err)
	}

	return nil
}

// Invalidate deletes the cache row for (side, relpath), used after a
// HashMismatch or after a delete.
func (s *Store) Invalidate(ctx context.Context, side sides.Side, relpath pathmodel.RelPath) error {
	_, err := s.invalidate.ExecContext(ctx, side.String(), relpath.String())
	if err != nil {
		return fmt.Errorf("hashcache: invalidate: %w", err)
	}

	return nil
}

// Iterate calls fn for every cached row on side, used by the dedupe engine's
// bulk scan. Iteration stops and returns fn's error if it returns non-nil.
func (s *Store) Iterate(ctx context.Context, side sides.Side, fn func(relpath pathmodel.RelPath, size int64, mtime time.Time, hash string) error) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT relpath, size, mtime_ms, hash FROM hash_entries WHERE side=?`, side.String())
	if err != nil {
		return fmt.Errorf("hashcache: iterate: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			relpathStr string
			size       int64
			mtimeMs    int64
			hash       string
		)

		if err := rows.Scan(&relpathStr, &size, &mtimeMs, &hash); err != nil {
			return fmt.Errorf("hashcache: scan: %w", err)
		}

		rp, err := pathmodel.New(relpathStr)
		if err != nil {
			return fmt.Errorf("hashcache: invalid stored relpath %q: %w", relpathStr, err)
		}

		if err := fn(rp, size, time.UnixMilli(mtimeMs), hash); err != nil {
			return err
		}
	}

	return rows.Err()
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
