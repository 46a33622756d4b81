// Package apperr defines the error-kind sentinels surfaced to callers per
// §7 of the engine's error handling design. Components wrap one of these
// with fmt.Errorf("...: %w", ...) so the executor and dedupe engine can
// classify failures with errors.Is without string matching.
package apperr

import (
	"errors"

	"github.com/localmodels/modellake/internal/hashpool"
)

var (
	// ErrNotFound means the relpath is absent on the side a task expected
	// it on. Fatal for that task.
	ErrNotFound = errors.New("apperr: not found")

	// ErrConflictRefused means a copy was blocked because the destination's
	// diff status is a confirmed conflict. Fatal.
	ErrConflictRefused = errors.New("apperr: conflict refused")

	// ErrPermissionDenied wraps a filesystem permission failure. Fatal.
	ErrPermissionDenied = errors.New("apperr: permission denied")

	// ErrTransientIO covers timeouts, disconnects, and other retryable I/O
	// failures. Retried up to QUEUE_RETRY_COUNT.
	ErrTransientIO = errors.New("apperr: transient I/O error")

	// ErrHashMismatch means a verify task found a digest different from the
	// one cached. The cache row is invalidated and the task fails.
	ErrHashMismatch = errors.New("apperr: hash mismatch on verify")

	// ErrPolicyDenied means a sync-path delete was refused by the side's
	// allow-delete flag.
	ErrPolicyDenied = errors.New("apperr: policy denied")

	// ErrDedupeStaleGroup means a duplicate group's files changed since the
	// scan that produced it; the group is skipped, not fatal to the batch.
	ErrDedupeStaleGroup = errors.New("apperr: duplicate group is stale")
)

// Transient reports whether err should be retried per the §7 taxonomy:
// transient I/O and a raced hash both get another attempt; everything else
// (path escape, not found, conflict, permission, policy, hash mismatch) is
// fatal on first occurrence.
func Transient(err error) bool {
	return errors.Is(err, ErrTransientIO) || errors.Is(err, hashpool.ErrHashRaced)
}
