package queue

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

// store is the SQLite persistence layer for tasks and the queue-level
// paused flag. It holds no business logic — that lives in Queue.
type store struct {
	db *sql.DB
}

func openStore(ctx context.Context, dbPath string, logger *slog.Logger) (*store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("queue: open sqlite: %w", err)
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
			return nil, fmt.Errorf("queue: pragma %q: %w", p, err)
		}
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	return &store{db: db}, nil
}

func (s *store) close() error { return s.db.Close() }

func timePtrMillis(t *time.Time) any {
	if t == nil {
		return nil
	}

	return t.UnixMilli()
}

func (s *store) insert(ctx context.Context, t Task) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (
			id, type, status, created_at, started_at, finished_at,
			size_bytes, bytes_transferred, error, retry_count, next_attempt_at,
			src_side, src_relpath, dst_side, dst_relpath,
			side, relpath, dedupe_initiated, folder,
			dedupe_side, dedupe_mode, min_size_bytes
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, string(t.Type), string(t.Status), t.CreatedAt.UnixMilli(), timePtrMillis(t.StartedAt), timePtrMillis(t.FinishedAt),
		t.SizeBytes, t.BytesTransferred, t.Error, t.RetryCount, t.NextAttemptAt.UnixMilli(),
		t.Payload.SrcSide.String(), t.Payload.SrcRelPath.String(), t.Payload.DstSide.String(), t.Payload.DstRelPath.String(),
		t.Payload.Side.String(), t.Payload.RelPath.String(), boolToInt(t.Payload.DedupeInitiated), t.Payload.Folder.String(),
		t.Payload.DedupeSide.String(), string(t.Payload.DedupeModeValue), t.Payload.MinSizeBytes,
	)
	if err != nil {
		return fmt.Errorf("queue: insert task: %w", err)
	}

	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}

	return 0
}

func (s *store) update(ctx context.Context, t Task) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status=?, started_at=?, finished_at=?, bytes_transferred=?,
			error=?, retry_count=?, next_attempt_at=? WHERE id=?`,
		string(t.Status), timePtrMillis(t.StartedAt), timePtrMillis(t.FinishedAt),
		t.BytesTransferred, t.Error, t.RetryCount, t.NextAttemptAt.UnixMilli(), t.ID)
	if err != nil {
		return fmt.Errorf("queue: update task: %w", err)
	}

	return nil
}

func (s *store) get(ctx context.Context, id string) (Task, error) {
	row := s.db.QueryRowContext(ctx, taskSelectColumns+` WHERE id=?`, id)

	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Task{}, fmt.Errorf("queue: task %q not found", id)
	}

	return t, err
}

func (s *store) listPendingOrdered(ctx context.Context, now time.Time) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx,
		taskSelectColumns+` WHERE status='pending' AND next_attempt_at <= ? ORDER BY created_at ASC, id ASC`,
		now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("queue: list pending: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

func (s *store) listRunning(ctx context.Context) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, taskSelectColumns+` WHERE status='running'`)
	if err != nil {
		return nil, fmt.Errorf("queue: list running: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

func (s *store) listAll(ctx context.Context) ([]Task, error) {
	rows, err := s.db.QueryContext(ctx, taskSelectColumns+`
		ORDER BY CASE status WHEN 'running' THEN 0 ELSE 1 END, created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("queue: list all: %w", err)
	}
	defer rows.Close()

	return scanTasks(rows)
}

func (s *store) setSizeBytes(ctx context.Context, id string, size int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE tasks SET size_bytes=? WHERE id=?`, size, id)
	if err != nil {
		return fmt.Errorf("queue: set size_bytes: %w", err)
	}

	return nil
}

func (s *store) setFlag(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO queue_flags (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value`,
		key, value)

	return err
}

func (s *store) getFlag(ctx context.Context, key string) (string, error) {
	var value string

	err := s.db.QueryRowContext(ctx, `SELECT value FROM queue_flags WHERE key=?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}

	return value, err
}

const taskSelectColumns = `SELECT
	id, type, status, created_at, started_at, finished_at,
	size_bytes, bytes_transferred, error, retry_count, next_attempt_at,
	src_side, src_relpath, dst_side, dst_relpath,
	side, relpath, dedupe_initiated, folder,
	dedupe_side, dedupe_mode, min_size_bytes
	FROM tasks`

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (Task, error) {
	var (
		t                                               Task
		typ, status                                     string
		createdAt, nextAttemptAt                         int64
		startedAt, finishedAt                            sql.NullInt64
		sizeBytes                                        sql.NullInt64
		srcSide, dstSide, side, dedupeSide, dedupeMode   string
		srcRelpath, dstRelpath, relpath, folder          string
		dedupeInitiated                                  int
	)

	err := row.Scan(
		&t.ID, &typ, &status, &createdAt, &startedAt, &finishedAt,
		&sizeBytes, &t.BytesTransferred, &t.Error, &t.RetryCount, &nextAttemptAt,
		&srcSide, &srcRelpath, &dstSide, &dstRelpath,
		&side, &relpath, &dedupeInitiated, &folder,
		&dedupeSide, &dedupeMode, &t.Payload.MinSizeBytes,
	)
	if err != nil {
		return Task{}, err
	}

	t.Type = Type(typ)
	t.Status = Status(status)
	t.CreatedAt = time.UnixMilli(createdAt)
	t.NextAttemptAt = time.UnixMilli(nextAttemptAt)

	if startedAt.Valid {
		v := time.UnixMilli(startedAt.Int64)
		t.StartedAt = &v
	}

	if finishedAt.Valid {
		v := time.UnixMilli(finishedAt.Int64)
		t.FinishedAt = &v
	}

	if sizeBytes.Valid {
		v := sizeBytes.Int64
		t.SizeBytes = &v
	}

	t.Payload.SrcSide, _ = sides.Parse(orDefault(srcSide, "local"))
	t.Payload.DstSide, _ = sides.Parse(orDefault(dstSide, "local"))
	t.Payload.Side, _ = sides.Parse(orDefault(side, "local"))
	t.Payload.DedupeSide, _ = sides.Parse(orDefault(dedupeSide, "local"))
	t.Payload.SrcRelPath = pathmodel.RelPath(srcRelpath)
	t.Payload.DstRelPath = pathmodel.RelPath(dstRelpath)
	t.Payload.RelPath = pathmodel.RelPath(relpath)
	t.Payload.Folder = pathmodel.RelPath(folder)
	t.Payload.DedupeInitiated = dedupeInitiated != 0
	t.Payload.DedupeModeValue = DedupeMode(dedupeMode)

	return t, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}

	return s
}

func scanTasks(rows *sql.Rows) ([]Task, error) {
	var out []Task

	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}

		out = append(out, t)
	}

	return out, rows.Err()
}
