package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/localmodels/modellake/internal/sides"
)

func newRefreshCmd() *cobra.Command {
	var flagSide string

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Rescan local and/or Lake directories and rebuild the in-memory index",
		Long: `Walk the configured directory tree(s) and rebuild the copy-on-write
index snapshot used by diff, mirror, and dedupe. By default both sides are
refreshed; use --side to scope to one.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRefresh(cmd.Context(), flagSide)
		},
	}

	cmd.Flags().StringVar(&flagSide, "side", "both", "which side to refresh: local, lake, or both")

	return cmd
}

func runRefresh(ctx context.Context, sideFlag string) error {
	cc := mustCLIContext(ctx)

	eng, err := openEngine(ctx, cc)
	if err != nil {
		return fmt.Errorf("opening engine: %w", err)
	}
	defer eng.Close()

	var side *sides.Side

	if sideFlag != "" && sideFlag != "both" {
		parsed, err := sides.Parse(sideFlag)
		if err != nil {
			return fmt.Errorf("invalid --side: %w", err)
		}

		side = &parsed
	}

	counts, err := eng.RefreshIndex(ctx, side)
	if err != nil {
		return fmt.Errorf("refreshing index: %w", err)
	}

	if cc.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(counts)
	}

	for s, n := range counts {
		cc.Statusf("%s: %d files indexed\n", s, n)
	}

	return nil
}
