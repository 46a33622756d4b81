package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/localmodels/modellake/internal/index"
)

func newDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff",
		Short: "Show per-file status between local and Lake indexes",
		Long: `Join the current local and Lake index snapshots and print each
relpath's classification: only_local, only_lake, same, probable_same, or
conflict. Run refresh first to pick up filesystem changes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDiff(cmd.Context())
		},
	}
}

func runDiff(ctx context.Context) error {
	cc := mustCLIContext(ctx)

	eng, err := openEngine(ctx, cc)
	if err != nil {
		return fmt.Errorf("opening engine: %w", err)
	}
	defer eng.Close()

	entries := eng.Diff(ctx)

	if cc.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(entries)
	}

	printDiffText(entries, cc.Quiet)

	return nil
}

func printDiffText(entries []index.DiffEntry, quiet bool) {
	if len(entries) == 0 {
		statusf(quiet, "No files indexed.\n")
		return
	}

	headers := []string{"RELPATH", "STATUS"}
	rows := make([][]string, 0, len(entries))

	for _, e := range entries {
		rows = append(rows, []string{e.RelPath.String(), string(e.Status)})
	}

	printTable(os.Stdout, headers, rows)
}
