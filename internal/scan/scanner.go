// Package scan implements the side walker (C4): it recursively walks a
// side's root, produces a FileRecord for each regular file, and publishes
// the result as a new index snapshot.
package scan

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/localmodels/modellake/internal/eventbus"
	"github.com/localmodels/modellake/internal/index"
	"github.com/localmodels/modellake/internal/pathmodel"
	"github.com/localmodels/modellake/internal/sides"
)

// Scanner walks one side's root and populates its index store.
type Scanner struct {
	side   sides.Side
	root   string
	store  *index.Store
	bus    *eventbus.Bus
	logger *slog.Logger
}

// New creates a Scanner for the given side.
func New(side sides.Side, root string, store *index.Store, bus *eventbus.Bus, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}

	return &Scanner{side: side, root: root, store: store, bus: bus, logger: logger}
}

// Scan walks the root and replaces the side's index snapshot. Failure to
// stat an individual entry is logged and skipped; failure to open the root
// itself is fatal and returned to the caller.
func (s *Scanner) Scan(ctx context.Context) (int, error) {
	entries := make(map[pathmodel.RelPath]index.Entry)

	var (
		scanned int
		skipped int
	)

	walkErr := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == s.root {
				return fmt.Errorf("scan: opening root %q: %w", s.root, err)
			}

			s.logger.Warn("scan: skipping unreadable entry", slog.String("path", p), slog.Any("error", err))
			skipped++

			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if p == s.root {
			return nil
		}

		rel, relErr := filepath.Rel(s.root, p)
		if relErr != nil {
			return nil
		}

		rel = filepath.ToSlash(rel)

		// Ignore root-level hidden files (e.g. the source-URL sidecar).
		if !strings.Contains(rel, "/") && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}

			return nil
		}

		if d.IsDir() {
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		info, statErr := d.Info()
		if statErr != nil {
			s.logger.Warn("scan: stat failed, skipping", slog.String("path", p), slog.Any("error", statErr))
			skipped++

			return nil
		}

		relpath, pathErr := pathmodel.New(rel)
		if pathErr != nil {
			s.logger.Warn("scan: invalid relpath, skipping", slog.String("path", p), slog.Any("error", pathErr))
			skipped++

			return nil
		}

		entries[relpath] = index.Entry{
			RelPath: relpath,
			Size:    info.Size(),
			ModTime: info.ModTime().UTC(),
		}

		scanned++

		if s.bus != nil && scanned%256 == 0 {
			s.bus.Publish(eventbus.Event{Topic: eventbus.TopicScanProgress, Data: ScanProgress{
				Side: s.side, FilesScanned: scanned,
			}})
		}

		return nil
	})
	if walkErr != nil {
		return 0, walkErr
	}

	// Carry forward hashes already known for unchanged files so a rescan
	// does not discard hash work the cache would otherwise still serve.
	existing := s.store.Snapshot()
	for relpath, e := range entries {
		if prev, ok := existing[relpath]; ok && prev.Size == e.Size && prev.ModTime.Equal(e.ModTime) {
			e.Hash = prev.Hash
			entries[relpath] = e
		}
	}

	s.store.Replace(entries)

	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Topic: eventbus.TopicIndexRefreshed, Data: IndexRefreshed{
			Side: s.side, FileCount: len(entries), At: time.Now(),
		}})
	}

	s.logger.Info("scan: complete",
		slog.String("side", s.side.String()),
		slog.Int("files", scanned),
		slog.Int("skipped", skipped))

	return scanned, nil
}

// ScanProgress is published periodically while a scan is in flight.
type ScanProgress struct {
	Side         sides.Side
	FilesScanned int
}

// IndexRefreshed is published when a side's snapshot has been replaced.
type IndexRefreshed struct {
	Side      sides.Side
	FileCount int
	At        time.Time
}
