package dedupe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/localmodels/modellake/internal/pathmodel"
	"github.com/localmodels/modellake/internal/queue"
	"github.com/localmodels/modellake/internal/sides"
)

const walJournalSizeLimit = 67108864 // 64 MiB

// store is the SQLite persistence layer for scan results, keyed by scan_id.
type store struct {
	db *sql.DB
}

func openStore(ctx context.Context, dbPath string, logger *slog.Logger) (*store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("dedupe: open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = FULL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		fmt.Sprintf("PRAGMA journal_size_limit = %d", walJournalSizeLimit),
	}

	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("dedupe: pragma %q: %w", p, err)
		}
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	return &store{db: db}, nil
}

func (s *store) close() error { return s.db.Close() }

// save persists a complete scan result transactionally.
func (s *store) save(ctx context.Context, r ScanResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("dedupe: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO dedupe_scans (scan_id, side, mode, min_size_bytes, created_at, total_bytes_redundant)
		 VALUES (?,?,?,?,?,?)`,
		r.ScanID, r.Side.String(), string(r.Mode), r.MinSizeBytes, r.CreatedAt.UnixMilli(), r.TotalBytesRedundant)
	if err != nil {
		return fmt.Errorf("dedupe: insert scan: %w", err)
	}

	for _, g := range r.Groups {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO dedupe_groups (scan_id, group_id, hash) VALUES (?,?,?)`,
			r.ScanID, g.ID, g.Hash); err != nil {
			return fmt.Errorf("dedupe: insert group: %w", err)
		}

		for _, f := range g.Files {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO dedupe_group_files (scan_id, group_id, relpath, size, mtime_ms) VALUES (?,?,?,?,?)`,
				r.ScanID, g.ID, f.RelPath.String(), f.Size, f.ModTime.UnixMilli()); err != nil {
				return fmt.Errorf("dedupe: insert group file: %w", err)
			}
		}
	}

	return tx.Commit()
}

func (s *store) get(ctx context.Context, scanID string) (ScanResult, error) {
	var (
		r               ScanResult
		sideStr, mode   string
		createdAt       int64
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT scan_id, side, mode, min_size_bytes, created_at, total_bytes_redundant
		 FROM dedupe_scans WHERE scan_id=?`, scanID,
	).Scan(&r.ScanID, &sideStr, &mode, &r.MinSizeBytes, &createdAt, &r.TotalBytesRedundant)
	if errors.Is(err, sql.ErrNoRows) {
		return ScanResult{}, fmt.Errorf("dedupe: scan %q not found", scanID)
	}

	if err != nil {
		return ScanResult{}, fmt.Errorf("dedupe: get scan: %w", err)
	}

	r.Side, _ = sides.Parse(sideStr)
	r.Mode = queue.DedupeMode(mode)
	r.CreatedAt = time.UnixMilli(createdAt)

	groups, err := s.loadGroups(ctx, scanID)
	if err != nil {
		return ScanResult{}, err
	}

	r.Groups = groups

	return r, nil
}

func (s *store) loadGroups(ctx context.Context, scanID string) ([]Group, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT group_id, hash FROM dedupe_groups WHERE scan_id=? ORDER BY group_id`, scanID)
	if err != nil {
		return nil, fmt.Errorf("dedupe: list groups: %w", err)
	}
	defer rows.Close()

	var groups []Group

	for rows.Next() {
		var g Group

		if err := rows.Scan(&g.ID, &g.Hash); err != nil {
			return nil, fmt.Errorf("dedupe: scan group: %w", err)
		}

		groups = append(groups, g)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range groups {
		files, err := s.loadGroupFiles(ctx, scanID, groups[i].ID)
		if err != nil {
			return nil, err
		}

		groups[i].Files = files
	}

	return groups, nil
}

func (s *store) loadGroupFiles(ctx context.Context, scanID, groupID string) ([]GroupFile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT relpath, size, mtime_ms FROM dedupe_group_files WHERE scan_id=? AND group_id=? ORDER BY relpath`,
		scanID, groupID)
	if err != nil {
		return nil, fmt.Errorf("dedupe: list group files: %w", err)
	}
	defer rows.Close()

	var files []GroupFile

	for rows.Next() {
		var (
			relpathStr string
			size       int64
			mtimeMs    int64
		)

		if err := rows.Scan(&relpathStr, &size, &mtimeMs); err != nil {
			return nil, fmt.Errorf("dedupe: scan group file: %w", err)
		}

		rp, err := pathmodel.New(relpathStr)
		if err != nil {
			return nil, fmt.Errorf("dedupe: invalid stored relpath %q: %w", relpathStr, err)
		}

		files = append(files, GroupFile{RelPath: rp, Size: size, ModTime: time.UnixMilli(mtimeMs)})
	}

	return files, rows.Err()
}

func (s *store) latest(ctx context.Context, side sides.Side) (ScanResult, error) {
	var scanID string

	err := s.db.QueryRowContext(ctx,
		`SELECT scan_id FROM dedupe_scans WHERE side=? ORDER BY created_at DESC LIMIT 1`, side.String(),
	).Scan(&scanID)
	if errors.Is(err, sql.ErrNoRows) {
		return ScanResult{}, fmt.Errorf("dedupe: no scans recorded for side %q", side.String())
	}

	if err != nil {
		return ScanResult{}, fmt.Errorf("dedupe: latest: %w", err)
	}

	return s.get(ctx, scanID)
}

func (s *store) delete(ctx context.Context, scanID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM dedupe_scans WHERE scan_id=?`, scanID)
	if err != nil {
		return fmt.Errorf("dedupe: delete scan: %w", err)
	}

	return nil
}
