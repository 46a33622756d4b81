package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/localmodels/modellake/internal/dedupe"
	"github.com/localmodels/modellake/internal/pathmodel"
	"github.com/localmodels/modellake/internal/queue"
	"github.com/localmodels/modellake/internal/sides"
)

func newDedupeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dedupe",
		Short: "Find and remove duplicate files on one side by content hash",
	}

	cmd.AddCommand(newDedupeScanCmd())
	cmd.AddCommand(newDedupeResultsCmd())
	cmd.AddCommand(newDedupeExecuteCmd())

	return cmd
}

func newDedupeScanCmd() *cobra.Command {
	var flagSide, flagMode string
	var flagMinSize int64

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan one side for duplicate-content file groups",
		Long: `Scan groups files by full BLAKE3 content hash. --mode fast hashes only
files that share their size and mtime with at least one other file; --mode
full hashes every candidate. Both modes reuse cached hashes whose size and
mtime still match the file. The scan result is persisted under a scan_id for later
inspection and deletion via "dedupe results" and "dedupe execute".`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDedupeScan(cmd.Context(), flagSide, flagMode, flagMinSize)
		},
	}

	cmd.Flags().StringVar(&flagSide, "side", "", "side to scan: local or lake (required)")
	cmd.Flags().StringVar(&flagMode, "mode", "fast", "scan mode: fast or full")
	cmd.Flags().Int64Var(&flagMinSize, "min-size", 0, "skip files smaller than this many bytes")

	return cmd
}

func runDedupeScan(ctx context.Context, sideStr, modeStr string, minSize int64) error {
	cc := mustCLIContext(ctx)

	side, err := sides.Parse(sideStr)
	if err != nil {
		return fmt.Errorf("invalid --side: %w", err)
	}

	mode := queue.DedupeFast
	if modeStr == "full" {
		mode = queue.DedupeFull
	}

	eng, err := openEngine(ctx, cc)
	if err != nil {
		return fmt.Errorf("opening engine: %w", err)
	}
	defer eng.Close()

	task, err := eng.EnqueueDedupeScan(ctx, side, mode, minSize)
	if err != nil {
		return fmt.Errorf("enqueuing dedupe scan: %w", err)
	}

	cc.Statusf("Dedupe scan enqueued as task %s\n", task.ID)

	return nil
}

func newDedupeResultsCmd() *cobra.Command {
	var flagScanID, flagSide string

	cmd := &cobra.Command{
		Use:   "results",
		Short: "Show the duplicate groups from a scan (defaults to the latest)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDedupeResults(cmd.Context(), flagScanID, flagSide)
		},
	}

	cmd.Flags().StringVar(&flagScanID, "scan-id", "", "scan to inspect (default: latest for --side)")
	cmd.Flags().StringVar(&flagSide, "side", "", "side whose latest scan to inspect, if --scan-id is omitted")

	return cmd
}

func runDedupeResults(ctx context.Context, scanID, sideStr string) error {
	cc := mustCLIContext(ctx)

	eng, err := openEngine(ctx, cc)
	if err != nil {
		return fmt.Errorf("opening engine: %w", err)
	}
	defer eng.Close()

	var groups []dedupe.Group

	if scanID != "" {
		groups, err = eng.DedupeResults(ctx, scanID)
	} else {
		var side sides.Side

		side, err = sides.Parse(sideStr)
		if err != nil {
			return fmt.Errorf("invalid --side: %w", err)
		}

		var result dedupe.ScanResult

		result, err = eng.DedupeLatestScan(ctx, side)
		if err == nil {
			groups = result.Groups
		}
	}

	if err != nil {
		return fmt.Errorf("loading dedupe results: %w", err)
	}

	if cc.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(groups)
	}

	printDedupeGroupsText(groups, cc.Quiet)

	return nil
}

func printDedupeGroupsText(groups []dedupe.Group, quiet bool) {
	if len(groups) == 0 {
		statusf(quiet, "No duplicate groups found.\n")
		return
	}

	for _, g := range groups {
		statusf(quiet, "Group %s (hash %s):\n", g.ID, g.Hash)

		for _, f := range g.Files {
			statusf(quiet, "  %s (%s)\n", f.RelPath, formatSize(f.Size))
		}
	}
}

func newDedupeExecuteCmd() *cobra.Command {
	var flagScanID string
	var flagKeep []string

	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Delete every duplicate in a scan's groups except the file chosen to keep",
		Long: `Execute deletion for a scanned set of duplicate groups. --keep is
repeatable as "group-id=relpath" to select which file survives in each
group; any group without a selection is skipped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDedupeExecute(cmd.Context(), flagScanID, flagKeep)
		},
	}

	cmd.Flags().StringVar(&flagScanID, "scan-id", "", "scan to execute against (required)")
	cmd.Flags().StringArrayVar(&flagKeep, "keep", nil, "group-id=relpath to keep (repeatable)")

	return cmd
}

func runDedupeExecute(ctx context.Context, scanID string, keepSpecs []string) error {
	cc := mustCLIContext(ctx)

	if scanID == "" {
		return fmt.Errorf("--scan-id is required")
	}

	selections, err := parseDedupeSelections(keepSpecs)
	if err != nil {
		return err
	}

	eng, err := openEngine(ctx, cc)
	if err != nil {
		return fmt.Errorf("opening engine: %w", err)
	}
	defer eng.Close()

	summary, err := eng.DedupeExecute(ctx, scanID, selections)
	if err != nil {
		return fmt.Errorf("executing dedupe deletion: %w", err)
	}

	cc.Statusf("Deleted %d file(s), freed %s; skipped %d group(s)\n",
		summary.Deleted, formatSize(summary.FreedBytes), len(summary.Skipped))

	return nil
}

func parseDedupeSelections(keepSpecs []string) ([]dedupe.Selection, error) {
	selections := make([]dedupe.Selection, 0, len(keepSpecs))

	for _, spec := range keepSpecs {
		groupID, relpathStr, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --keep %q, expected group-id=relpath", spec)
		}

		relpath, err := pathmodel.New(relpathStr)
		if err != nil {
			return nil, fmt.Errorf("invalid --keep relpath %q: %w", relpathStr, err)
		}

		selections = append(selections, dedupe.Selection{GroupID: groupID, KeepRelPath: relpath})
	}

	return selections, nil
}
