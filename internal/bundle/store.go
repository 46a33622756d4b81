package bundle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
	"github.com/google/uuid"

	"github.com/localmodels/modellake/internal/pathmodel"
)

const walJournalSizeLimit = 67108864 // 64 MiB

// ErrNotFound is returned when a bundle name or ID has no matching row.
var ErrNotFound = errors.New("bundle: not found")

// stmtDef maps a SQL string to the prepared statement pointer it should
// populate, eliminating repetitive prepare-and-check boilerplate.
type stmtDef struct {
	dest **sql.Stmt
	sql  string
	name string
}

// prepareAll prepares a batch of statements, returning on the first error.
func prepareAll(ctx context.Context, db *sql.DB, defs []stmtDef) error {
	for i := range defs {
		stmt, err := db.PrepareContext(ctx, defs[i].sql)
		if err != nil {
			return fmt.Errorf("prepare %s: %w", defs[i].name, err)
		}

		*defs[i].dest = stmt
	}

	return nil
}

type bundleStatements struct {
	insert, getByID, getByName, listAll, touch, delete *sql.Stmt
}

type itemStatements struct {
	insert, deleteByBundle, listByBundle *sql.Stmt
}

// Store is a SQLite-backed CRUD store for named ordered file lists.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	bundleStmts bundleStatements
	itemStmts   itemStatements
}

// Open opens (creating if necessary) the bundle database at dbPath, applies
// migrations, and prepares statements. Use ":memory:" for tests.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("bundle: open sqlite: %w", err)
	}

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
	if err := s.prepareAllStatements(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("bundle: prepare statements: %w", err)
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
			return fmt.Errorf("bundle: pragma %q: %w", stmt, err)
		}
	}

	return nil
}

func (s *Store) prepareAllStatements(ctx context.Context) error {
	if err := prepareAll(ctx, s.db, []stmtDef{
		{&s.bundleStmts.insert, `INSERT INTO bundles (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`, "insertBundle"},
		{&s.bundleStmts.getByID, `SELECT id, name, created_at, updated_at FROM bundles WHERE id = ?`, "getBundleByID"},
		{&s.bundleStmts.getByName, `SELECT id, name, created_at, updated_at FROM bundles WHERE name = ?`, "getBundleByName"},
		{&s.bundleStmts.listAll, `SELECT id, name, created_at, updated_at FROM bundles ORDER BY name`, "listBundles"},
		{&s.bundleStmts.touch, `UPDATE bundles SET updated_at = ? WHERE id = ?`, "touchBundle"},
		{&s.bundleStmts.delete, `DELETE FROM bundles WHERE id = ?`, "deleteBundle"},
	}); err != nil {
		return err
	}

	return prepareAll(ctx, s.db, []stmtDef{
		{&s.itemStmts.insert, `INSERT INTO bundle_items (bundle_id, position, relpath, hash, source_url_override) VALUES (?, ?, ?, ?, ?)`, "insertItem"},
		{&s.itemStmts.deleteByBundle, `DELETE FROM bundle_items WHERE bundle_id = ?`, "deleteItemsByBundle"},
		{&s.itemStmts.listByBundle, `SELECT relpath, hash, source_url_override FROM bundle_items WHERE bundle_id = ? ORDER BY position`, "listItemsByBundle"},
	})
}

// Create persists a new bundle with the given name and ordered items. The
// name must be unique; ID and timestamps are assigned here.
func (s *Store) Create(ctx context.Context, name string, items []Item) (Bundle, error) {
	now := time.Now().UnixMilli()
	b := Bundle{ID: uuid.NewString(), Name: name, Items: items, CreatedAt: now, UpdatedAt: now}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Bundle{}, fmt.Errorf("bundle: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.StmtContext(ctx, s.bundleStmts.insert).ExecContext(ctx, b.ID, b.Name, b.CreatedAt, b.UpdatedAt); err != nil {
		return Bundle{}, fmt.Errorf("bundle: insert bundle: %w", err)
	}

	if err := insertItems(ctx, tx, s.itemStmts.insert, b.ID, items); err != nil {
		return Bundle{}, err
	}

	if err := tx.Commit(); err != nil {
		return Bundle{}, fmt.Errorf("bundle: commit: %w", err)
	}

	return b, nil
}

func insertItems(ctx context.Context, tx *sql.Tx, stmt *sql.Stmt, bundleID string, items []Item) error {
	for i, item := range items {
		var hash, override any
		if item.Hash != "" {
			hash = item.Hash
		}

		if item.SourceURLOverride != "" {
			override = item.SourceURLOverride
		}

		if _, err := tx.StmtContext(ctx, stmt).ExecContext(ctx, bundleID, i, item.RelPath.String(), hash, override); err != nil {
			return fmt.Errorf("bundle: insert item %d: %w", i, err)
		}
	}

	return nil
}

// Replace overwrites an existing bundle's item list in place, bumping
// updated_at, without changing its ID or name.
func (s *Store) Replace(ctx context.Context, id string, items []Item) (Bundle, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Bundle{}, fmt.Errorf("bundle: begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UnixMilli()

	res, err := tx.StmtContext(ctx, s.bundleStmts.touch).ExecContext(ctx, now, id)
	if err != nil {
		return Bundle{}, fmt.Errorf("bundle: touch: %w", err)
	}

	if n, err := res.RowsAffected(); err != nil {
		return Bundle{}, fmt.Errorf("bundle: touch rows affected: %w", err)
	} else if n == 0 {
		return Bundle{}, ErrNotFound
	}

	if _, err := tx.StmtContext(ctx, s.itemStmts.deleteByBundle).ExecContext(ctx, id); err != nil {
		return Bundle{}, fmt.Errorf("bundle: clear items: %w", err)
	}

	if err := insertItems(ctx, tx, s.itemStmts.insert, id, items); err != nil {
		return Bundle{}, err
	}

	if err := tx.Commit(); err != nil {
		return Bundle{}, fmt.Errorf("bundle: commit: %w", err)
	}

	return s.Get(ctx, id)
}

// Get returns a bundle by ID with its items loaded in order.
func (s *Store) Get(ctx context.Context, id string) (Bundle, error) {
	return s.scanBundle(ctx, s.bundleStmts.getByID, id)
}

// GetByName returns a bundle by its unique name with its items loaded.
func (s *Store) GetByName(ctx context.Context, name string) (Bundle, error) {
	return s.scanBundle(ctx, s.bundleStmts.getByName, name)
}

func (s *Store) scanBundle(ctx context.Context, stmt *sql.Stmt, key string) (Bundle, error) {
	var b Bundle

	err := stmt.QueryRowContext(ctx, key).Scan(&b.ID, &b.Name, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Bundle{}, ErrNotFound
	}

	if err != nil {
		return Bundle{}, fmt.Errorf("bundle: get: %w", err)
	}

	items, err := s.loadItems(ctx, b.ID)
	if err != nil {
		return Bundle{}, err
	}

	b.Items = items

	return b, nil
}

func (s *Store) loadItems(ctx context.Context, bundleID string) ([]Item, error) {
	rows, err := s.itemStmts.listByBundle.QueryContext(ctx, bundleID)
	if err != nil {
		return nil, fmt.Errorf("bundle: list items: %w", err)
	}
	defer rows.Close()

	var items []Item

	for rows.Next() {
		var (
			relpathStr    string
			hash, override sql.NullString
		)

		if err := rows.Scan(&relpathStr, &hash, &override); err != nil {
			return nil, fmt.Errorf("bundle: scan item: %w", err)
		}

		rp, err := pathmodel.New(relpathStr)
		if err != nil {
			return nil, fmt.Errorf("bundle: invalid stored relpath %q: %w", relpathStr, err)
		}

		items = append(items, Item{RelPath: rp, Hash: hash.String, SourceURLOverride: override.String})
	}

	return items, rows.Err()
}

// List returns every bundle, with items loaded, ordered by name.
func (s *Store) List(ctx context.Context) ([]Bundle, error) {
	rows, err := s.bundleStmts.listAll.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("bundle: list: %w", err)
	}

	var ids []Bundle

	for rows.Next() {
		var b Bundle
		if err := rows.Scan(&b.ID, &b.Name, &b.CreatedAt, &b.UpdatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("bundle: scan: %w", err)
		}

		ids = append(ids, b)
	}

	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}

	rows.Close()

	for i, b := range ids {
		items, err := s.loadItems(ctx, b.ID)
		if err != nil {
			return nil, err
		}

		ids[i].Items = items
	}

	return ids, nil
}

// Delete removes a bundle and its items (cascade). Deleting an unknown ID
// is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.bundleStmts.delete.ExecContext(ctx, id)
	if err != nil {
		return fmt.Errorf("bundle: delete: %w", err)
	}

	return nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
