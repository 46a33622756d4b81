package executor

import (
	"errors"
	"fmt"
	"os"

	"github.com/localmodels/modellake/internal/apperr"
)

// classifyStatError maps a failed stat/open into the §7 error taxonomy:
// a missing source is fatal (NotFound), a permission failure is fatal, and
// anything else (timeout, stale NFS handle, share disconnect) is treated as
// transient I/O and retried.
func classifyStatError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("%w: %v", apperr.ErrNotFound, err)
	case errors.Is(err, os.ErrPermission):
		return fmt.Errorf("%w: %v", apperr.ErrPermissionDenied, err)
	default:
		return fmt.Errorf("%w: %v", apperr.ErrTransientIO, err)
	}
}

// classifyIOError maps a failure during writing, renaming, or directory
// creation. Permission failures are fatal; everything else (disk full,
// timeout, share disconnect, rename across volume) is transient and
// retried per §4.6 step 8.
func classifyIOError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, os.ErrPermission):
		return fmt.Errorf("%w: %v", apperr.ErrPermissionDenied, err)
	default:
		return fmt.Errorf("%w: %v", apperr.ErrTransientIO, err)
	}
}
