package dedupe

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/localmodels/modellake/internal/eventbus"
	"github.com/localmodels/modellake/internal/hashcache"
	"github.com/localmodels/modellake/internal/hashpool"
	"github.com/localmodels/modellake/internal/index"
	"github.com/localmodels/modellake/internal/pathmodel"
	"github.com/localmodels/modellake/internal/queue"
	"github.com/localmodels/modellake/internal/sides"
)

// Engine scans a side for duplicate content and executes operator-chosen
// deletions against it. It reads the hash cache (triggering hash work via
// the hash pool when a candidate is not yet hashed), persists results keyed
// by scan_id, and submits deletion tasks through the shared queue.
type Engine struct {
	store    *store
	hashPool *hashpool.Pool
	cache    *hashcache.Store
	queue    *queue.Queue
	bus      *eventbus.Bus
	logger   *slog.Logger
	idGen    func() string
}

// Open opens the dedupe scan-result database at dbPath.
func Open(ctx context.Context, dbPath string, hashPool *hashpool.Pool, cache *hashcache.Store, q *queue.Queue, bus *eventbus.Bus, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	st, err := openStore(ctx, dbPath, logger)
	if err != nil {
		return nil, err
	}

	return &Engine{
		store:    st,
		hashPool: hashPool,
		cache:    cache,
		queue:    q,
		bus:      bus,
		logger:   logger,
		idGen:    func() string { return uuid.NewString() },
	}, nil
}

// Close releases the underlying database connection.
func (e *Engine) Close() error { return e.store.close() }

// ScanProgress is published periodically while a dedupe_scan task runs.
type ScanProgress struct {
	Side      sides.Side
	Candidates int
	Hashed    int
}

// Scan walks the side's current index snapshot, groups files into hash
// candidates per §4.8, hashes the candidates, groups by digest, and
// persists the result under a fresh scan_id. root is the side's filesystem
// root, needed to resolve relpaths for hashing.
func (e *Engine) Scan(ctx context.Context, side sides.Side, root string, idx *index.Store, mode queue.DedupeMode, minSizeBytes int64) (ScanResult, error) {
	snapshot := idx.Snapshot()

	candidates := e.selectCandidates(snapshot, mode, minSizeBytes)

	if e.bus != nil {
		e.bus.Publish(eventbus.Event{Topic: eventbus.TopicScanProgress, Data: ScanProgress{
			Side: side, Candidates: len(candidates),
		}})
	}

	reqs := make([]hashpool.Request, len(candidates))
	for i, c := range candidates {
		reqs[i] = hashpool.Request{Side: side, Root: root, RelPath: c.RelPath, Store: idx}
	}

	hashes, hashErrs := e.hashPool.HashMany(ctx, reqs)

	if ctx.Err() != nil {
		return ScanResult{}, ctx.Err()
	}

	byHash := make(map[string][]GroupFile, len(candidates))
	hashed := 0

	for i, c := range candidates {
		if hashErrs[i] != nil {
			e.logger.Warn("dedupe: skipping unhashable candidate",
				slog.String("relpath", c.RelPath.String()), slog.Any("error", hashErrs[i]))

			continue
		}

		byHash[hashes[i]] = append(byHash[hashes[i]], c)
		hashed++

		if e.bus != nil && hashed%64 == 0 {
			e.bus.Publish(eventbus.Event{Topic: eventbus.TopicScanProgress, Data: ScanProgress{
				Side: side, Candidates: len(candidates), Hashed: hashed,
			}})
		}
	}

	var (
		groups     []Group
		totalBytes int64
	)

	hashKeys := make([]string, 0, len(byHash))
	for h := range byHash {
		hashKeys = append(hashKeys, h)
	}

	sort.Strings(hashKeys)

	for _, h := range hashKeys {
		files := byHash[h]
		if len(files) < 2 {
			continue
		}

		sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })

		groups = append(groups, Group{ID: e.idGen(), Hash: h, Side: side, Files: files})

		for _, f := range files[1:] {
			totalBytes += f.Size
		}
	}

	result := ScanResult{
		ScanID:              e.idGen(),
		Side:                side,
		Mode:                mode,
		MinSizeBytes:        minSizeBytes,
		CreatedAt:           time.Now().UTC(),
		Groups:              groups,
		TotalBytesRedundant: totalBytes,
	}

	if err := e.store.save(ctx, result); err != nil {
		return ScanResult{}, err
	}

	return result, nil
}

// selectCandidates implements the §4.8 fast/full mode split: fast mode only
// hashes files whose (size, mtime) bucket has ≥2 members, so files with equal
// content but different mtimes are not compared; full mode hashes every file
// ≥ minSizeBytes.
func (e *Engine) selectCandidates(snapshot map[pathmodel.RelPath]index.Entry, mode queue.DedupeMode, minSizeBytes int64) []GroupFile {
	type bucketKey struct {
		size  int64
		mtime int64
	}

	buckets := make(map[bucketKey][]GroupFile)

	for relpath, entry := range snapshot {
		if entry.Size < minSizeBytes {
			continue
		}

		gf := GroupFile{RelPath: relpath, Size: entry.Size, ModTime: entry.ModTime}
		k := bucketKey{size: entry.Size, mtime: entry.ModTime.UnixMilli()}
		buckets[k] = append(buckets[k], gf)
	}

	var out []GroupFile

	for _, files := range buckets {
		if mode == queue.DedupeFast && len(files) < 2 {
			continue
		}

		out = append(out, files...)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].RelPath < out[j].RelPath })

	return out
}

// LatestScan returns the most recent scan recorded for side.
func (e *Engine) LatestScan(ctx context.Context, side sides.Side) (ScanResult, error) {
	return e.store.latest(ctx, side)
}

// GetScan returns a previously persisted scan by ID.
func (e *Engine) GetScan(ctx context.Context, scanID string) (ScanResult, error) {
	return e.store.get(ctx, scanID)
}

// DeleteScan removes a persisted scan result.
func (e *Engine) DeleteScan(ctx context.Context, scanID string) error {
	return e.store.delete(ctx, scanID)
}

// ExecuteDeletion enqueues delete tasks for every member of each selected
// group except the one chosen to keep. Deletion bypasses
// allow_delete_from_sync per §4.8: the enqueued delete payloads set
// DedupeInitiated. A group whose files changed on disk since the scan
// (stat mismatch) is skipped and reported, not fatal to the rest of the
// batch.
func (e *Engine) ExecuteDeletion(ctx context.Context, root string, scanID string, selections []Selection) (Summary, error) {
	result, err := e.store.get(ctx, scanID)
	if err != nil {
		return Summary{}, err
	}

	byID := make(map[string]Group, len(result.Groups))
	for _, g := range result.Groups {
		byID[g.ID] = g
	}

	var summary Summary

	for _, sel := range selections {
		g, ok := byID[sel.GroupID]
		if !ok {
			summary.Skipped = append(summary.Skipped, SkippedGroup{GroupID: sel.GroupID, Reason: "group not found in scan"})
			continue
		}

		if reason, stale := e.staleGroup(root, g); stale {
			summary.Skipped = append(summary.Skipped, SkippedGroup{GroupID: g.ID, Reason: reason})
			continue
		}

		kept := false

		for _, f := range g.Files {
			if f.RelPath == sel.KeepRelPath {
				kept = true
				continue
			}

			if _, err := e.queue.Enqueue(ctx, queue.TypeDelete, queue.Payload{
				Side:            result.Side,
				RelPath:         f.RelPath,
				DedupeInitiated: true,
			}); err != nil {
				return summary, fmt.Errorf("dedupe: enqueue delete for %s: %w", f.RelPath, err)
			}

			summary.Deleted++
			summary.FreedBytes += f.Size
		}

		if !kept {
			e.logger.Warn("dedupe: keep relpath not a member of its group",
				slog.String("group_id", g.ID), slog.String("keep_relpath", sel.KeepRelPath.String()))
		}
	}

	return summary, nil
}

// staleGroup re-stats every file in g against root and reports whether any
// member's size or mtime has drifted from what the scan recorded.
func (e *Engine) staleGroup(root string, g Group) (string, bool) {
	for _, f := range g.Files {
		abs, err := pathmodel.Join(root, f.RelPath)
		if err != nil {
			return fmt.Sprintf("%s: %v", f.RelPath, err), true
		}

		info, err := os.Stat(abs)
		if err != nil {
			return fmt.Sprintf("%s: %v", f.RelPath, err), true
		}

		if info.Size() != f.Size || !info.ModTime().UTC().Equal(f.ModTime.UTC()) {
			return fmt.Sprintf("%s changed since scan", f.RelPath), true
		}
	}

	return "", false
}
