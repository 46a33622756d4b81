package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/localmodels/modellake/internal/bundle"
	"github.com/localmodels/modellake/internal/pathmodel"
)

func newBundleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bundle",
		Short: "Manage named ordered file lists for external provisioning flows",
	}

	cmd.AddCommand(newBundleListCmd())
	cmd.AddCommand(newBundleGetCmd())
	cmd.AddCommand(newBundleCreateCmd())
	cmd.AddCommand(newBundleReplaceCmd())
	cmd.AddCommand(newBundleDeleteCmd())

	return cmd
}

func newBundleListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every bundle",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBundleList(cmd.Context())
		},
	}
}

func runBundleList(ctx context.Context) error {
	cc := mustCLIContext(ctx)

	eng, err := openEngine(ctx, cc)
	if err != nil {
		return fmt.Errorf("opening engine: %w", err)
	}
	defer eng.Close()

	bundles, err := eng.ListBundles(ctx)
	if err != nil {
		return fmt.Errorf("listing bundles: %w", err)
	}

	if cc.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(bundles)
	}

	if len(bundles) == 0 {
		statusf(cc.Quiet, "No bundles.\n")
		return nil
	}

	headers := []string{"ID", "NAME", "ITEMS"}
	rows := make([][]string, 0, len(bundles))

	for _, b := range bundles {
		rows = append(rows, []string{b.ID, b.Name, fmt.Sprintf("%d", len(b.Items))})
	}

	printTable(os.Stdout, headers, rows)

	return nil
}

func newBundleGetCmd() *cobra.Command {
	var flagName bool

	cmd := &cobra.Command{
		Use:   "get <id-or-name>",
		Short: "Show a bundle's items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBundleGet(cmd.Context(), args[0], flagName)
		},
	}

	cmd.Flags().BoolVar(&flagName, "by-name", false, "look up by bundle name instead of ID")

	return cmd
}

func runBundleGet(ctx context.Context, key string, byName bool) error {
	cc := mustCLIContext(ctx)

	eng, err := openEngine(ctx, cc)
	if err != nil {
		return fmt.Errorf("opening engine: %w", err)
	}
	defer eng.Close()

	var b bundle.Bundle

	if byName {
		b, err = eng.GetBundleByName(ctx, key)
	} else {
		b, err = eng.GetBundle(ctx, key)
	}

	if err != nil {
		return fmt.Errorf("getting bundle: %w", err)
	}

	if cc.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(b)
	}

	printBundleText(b, cc.Quiet)

	return nil
}

func printBundleText(b bundle.Bundle, quiet bool) {
	statusf(quiet, "%s (%s): %d item(s)\n", b.Name, b.ID, len(b.Items))

	for _, item := range b.Items {
		if item.Hash != "" {
			statusf(quiet, "  %s (%s)\n", item.RelPath, item.Hash)
		} else {
			statusf(quiet, "  %s\n", item.RelPath)
		}
	}
}

func newBundleCreateCmd() *cobra.Command {
	var flagName string
	var flagItems []string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new bundle from a list of relpaths",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBundleCreate(cmd.Context(), flagName, flagItems)
		},
	}

	cmd.Flags().StringVar(&flagName, "name", "", "bundle name (required)")
	cmd.Flags().StringArrayVar(&flagItems, "item", nil, "relpath to include (repeatable)")

	return cmd
}

func runBundleCreate(ctx context.Context, name string, itemSpecs []string) error {
	cc := mustCLIContext(ctx)

	if name == "" {
		return fmt.Errorf("--name is required")
	}

	items, err := parseBundleItems(itemSpecs)
	if err != nil {
		return err
	}

	eng, err := openEngine(ctx, cc)
	if err != nil {
		return fmt.Errorf("opening engine: %w", err)
	}
	defer eng.Close()

	b, err := eng.CreateBundle(ctx, name, items)
	if err != nil {
		return fmt.Errorf("creating bundle: %w", err)
	}

	cc.Statusf("Bundle %s created with %d item(s)\n", b.ID, len(b.Items))

	return nil
}

func newBundleReplaceCmd() *cobra.Command {
	var flagItems []string

	cmd := &cobra.Command{
		Use:   "replace <id>",
		Short: "Replace a bundle's item list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBundleReplace(cmd.Context(), args[0], flagItems)
		},
	}

	cmd.Flags().StringArrayVar(&flagItems, "item", nil, "relpath to include (repeatable)")

	return cmd
}

func runBundleReplace(ctx context.Context, id string, itemSpecs []string) error {
	cc := mustCLIContext(ctx)

	items, err := parseBundleItems(itemSpecs)
	if err != nil {
		return err
	}

	eng, err := openEngine(ctx, cc)
	if err != nil {
		return fmt.Errorf("opening engine: %w", err)
	}
	defer eng.Close()

	b, err := eng.ReplaceBundle(ctx, id, items)
	if err != nil {
		return fmt.Errorf("replacing bundle: %w", err)
	}

	cc.Statusf("Bundle %s now has %d item(s)\n", b.ID, len(b.Items))

	return nil
}

func newBundleDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBundleDelete(cmd.Context(), args[0])
		},
	}
}

func runBundleDelete(ctx context.Context, id string) error {
	cc := mustCLIContext(ctx)

	eng, err := openEngine(ctx, cc)
	if err != nil {
		return fmt.Errorf("opening engine: %w", err)
	}
	defer eng.Close()

	if err := eng.DeleteBundle(ctx, id); err != nil {
		return fmt.Errorf("deleting bundle: %w", err)
	}

	cc.Statusf("Bundle %s deleted\n", id)

	return nil
}

// parseBundleItems parses "relpath" or "relpath=hash" item specs.
func parseBundleItems(specs []string) ([]bundle.Item, error) {
	items := make([]bundle.Item, 0, len(specs))

	for _, spec := range specs {
		relpathStr, hash, _ := strings.Cut(spec, "=")

		relpath, err := pathmodel.New(relpathStr)
		if err != nil {
			return nil, fmt.Errorf("invalid --item relpath %q: %w", relpathStr, err)
		}

		items = append(items, bundle.Item{RelPath: relpath, Hash: hash})
	}

	return items, nil
}
