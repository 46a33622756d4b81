package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/localmodels/modellake/internal/pathmodel"
)

func newSourceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "source",
		Short: "Track provenance URLs for files on the Lake",
	}

	cmd.AddCommand(newSourceListCmd())
	cmd.AddCommand(newSourceSetCmd())
	cmd.AddCommand(newSourceDeleteCmd())

	return cmd
}

func newSourceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every tracked source URL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSourceList(cmd.Context())
		},
	}
}

func runSourceList(ctx context.Context) error {
	cc := mustCLIContext(ctx)

	eng, err := openEngine(ctx, cc)
	if err != nil {
		return fmt.Errorf("opening engine: %w", err)
	}
	defer eng.Close()

	entries, err := eng.ListSources()
	if err != nil {
		return fmt.Errorf("listing sources: %w", err)
	}

	if cc.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		statusf(cc.Quiet, "No source URLs tracked.\n")
		return nil
	}

	headers := []string{"KEY", "URL", "NOTES"}
	rows := make([][]string, 0, len(entries))

	for _, e := range entries {
		rows = append(rows, []string{e.Key, e.URL, e.Notes})
	}

	printTable(os.Stdout, headers, rows)

	return nil
}

func newSourceSetCmd() *cobra.Command {
	var flagRelPath, flagHash, flagURL, flagNotes, flagFilenameHint string
	var flagQueueHash bool

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Record a source URL for a file, identified by --relpath or --hash",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSourceSet(cmd.Context(), flagRelPath, flagHash, flagURL, flagNotes, flagFilenameHint, flagQueueHash)
		},
	}

	cmd.Flags().StringVar(&flagRelPath, "relpath", "", "file identified by Lake-relative path")
	cmd.Flags().StringVar(&flagHash, "hash", "", "file identified by content hash")
	cmd.Flags().StringVar(&flagURL, "url", "", "source URL (required)")
	cmd.Flags().StringVar(&flagNotes, "notes", "", "freeform notes")
	cmd.Flags().StringVar(&flagFilenameHint, "filename-hint", "", "suggested filename if the file does not yet exist locally")
	cmd.Flags().BoolVar(&flagQueueHash, "queue-hash", false, "enqueue a hash_file task if the file is unhashed")

	cmd.MarkFlagsMutuallyExclusive("relpath", "hash")

	return cmd
}

func runSourceSet(ctx context.Context, relpathStr, hash, url, notes, filenameHint string, queueHash bool) error {
	cc := mustCLIContext(ctx)

	if url == "" {
		return fmt.Errorf("--url is required")
	}

	if relpathStr == "" && hash == "" {
		return fmt.Errorf("either --relpath or --hash is required")
	}

	eng, err := openEngine(ctx, cc)
	if err != nil {
		return fmt.Errorf("opening engine: %w", err)
	}
	defer eng.Close()

	if hash != "" {
		if err := eng.PutSourceByHash(hash, url, notes, filenameHint); err != nil {
			return fmt.Errorf("setting source: %w", err)
		}

		cc.Statusf("Source recorded for hash %s\n", hash)

		return nil
	}

	relpath, err := pathmodel.New(relpathStr)
	if err != nil {
		return fmt.Errorf("invalid --relpath: %w", err)
	}

	task, err := eng.PutSourceByRelPath(ctx, relpath, url, notes, filenameHint, queueHash)
	if err != nil {
		return fmt.Errorf("setting source: %w", err)
	}

	if task != nil {
		cc.Statusf("Source recorded for %s; hash_file task %s enqueued\n", relpath, task.ID)
	} else {
		cc.Statusf("Source recorded for %s\n", relpath)
	}

	return nil
}

func newSourceDeleteCmd() *cobra.Command {
	var flagRelPath, flagHash string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Remove a tracked source URL, identified by --relpath or --hash",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSourceDelete(cmd.Context(), flagRelPath, flagHash)
		},
	}

	cmd.Flags().StringVar(&flagRelPath, "relpath", "", "file identified by Lake-relative path")
	cmd.Flags().StringVar(&flagHash, "hash", "", "file identified by content hash")

	cmd.MarkFlagsMutuallyExclusive("relpath", "hash")

	return cmd
}

func runSourceDelete(ctx context.Context, relpathStr, hash string) error {
	cc := mustCLIContext(ctx)

	if relpathStr == "" && hash == "" {
		return fmt.Errorf("either --relpath or --hash is required")
	}

	eng, err := openEngine(ctx, cc)
	if err != nil {
		return fmt.Errorf("opening engine: %w", err)
	}
	defer eng.Close()

	if hash != "" {
		if err := eng.DeleteSourceByHash(hash); err != nil {
			return fmt.Errorf("deleting source: %w", err)
		}

		cc.Statusf("Source removed for hash %s\n", hash)

		return nil
	}

	relpath, err := pathmodel.New(relpathStr)
	if err != nil {
		return fmt.Errorf("invalid --relpath: %w", err)
	}

	if err := eng.DeleteSourceByRelPath(relpath); err != nil {
		return fmt.Errorf("deleting source: %w", err)
	}

	cc.Statusf("Source removed for %s\n", relpath)

	return nil
}
