package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/localmodels/modellake/internal/mirror"
	"github.com/localmodels/modellake/internal/pathmodel"
	"github.com/localmodels/modellake/internal/sides"
)

func newMirrorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Plan and execute one-way folder mirroring between sides",
	}

	cmd.AddCommand(newMirrorPlanCmd())
	cmd.AddCommand(newMirrorExecuteCmd())

	return cmd
}

func mirrorFlags(cmd *cobra.Command) (srcSide, srcFolder, dstSide, dstFolder *string) {
	srcSide = cmd.Flags().String("src-side", "local", "source side: local or lake")
	srcFolder = cmd.Flags().String("src-folder", "", "source folder (relpath prefix, default: root)")
	dstSide = cmd.Flags().String("dst-side", "lake", "destination side: local or lake")
	dstFolder = cmd.Flags().String("dst-folder", "", "destination folder (relpath prefix, default: root)")

	return
}

func resolveMirrorArgs(srcSideStr, srcFolderStr, dstSideStr, dstFolderStr string) (
	srcSide sides.Side, srcFolder pathmodel.RelPath, dstSide sides.Side, dstFolder pathmodel.RelPath, err error,
) {
	if srcSide, err = sides.Parse(srcSideStr); err != nil {
		return
	}

	if dstSide, err = sides.Parse(dstSideStr); err != nil {
		return
	}

	if srcFolderStr != "" {
		if srcFolder, err = pathmodel.New(srcFolderStr); err != nil {
			return
		}
	}

	if dstFolderStr != "" {
		if dstFolder, err = pathmodel.New(dstFolderStr); err != nil {
			return
		}
	}

	return
}

func newMirrorPlanCmd() *cobra.Command {
	var srcSideStr, srcFolderStr, dstSideStr, dstFolderStr *string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Compute and print a copy/delete/conflict plan without acting",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMirrorPlan(cmd.Context(), *srcSideStr, *srcFolderStr, *dstSideStr, *dstFolderStr)
		},
	}

	srcSideStr, srcFolderStr, dstSideStr, dstFolderStr = mirrorFlags(cmd)

	return cmd
}

func runMirrorPlan(ctx context.Context, srcSideStr, srcFolderStr, dstSideStr, dstFolderStr string) error {
	cc := mustCLIContext(ctx)

	srcSide, srcFolder, dstSide, dstFolder, err := resolveMirrorArgs(srcSideStr, srcFolderStr, dstSideStr, dstFolderStr)
	if err != nil {
		return err
	}

	eng, err := openEngine(ctx, cc)
	if err != nil {
		return fmt.Errorf("opening engine: %w", err)
	}
	defer eng.Close()

	plan := eng.MirrorPlan(srcSide, srcFolder, dstSide, dstFolder)

	if cc.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(plan)
	}

	printMirrorPlanText(plan, cc.Quiet)

	return nil
}

func printMirrorPlanText(plan mirror.Plan, quiet bool) {
	statusf(quiet, "Copy:      %d files (%s)\n", len(plan.Copy), formatSize(plan.TotalCopyBytes))
	statusf(quiet, "Delete:    %d files (%s)\n", len(plan.Delete), formatSize(plan.TotalDeleteBytes))
	statusf(quiet, "Conflicts: %d files (not acted on)\n", len(plan.Conflicts))
	statusf(quiet, "Extras:    %d files (delete denied by destination policy)\n", len(plan.Extras))
}

func newMirrorExecuteCmd() *cobra.Command {
	var srcSideStr, srcFolderStr, dstSideStr, dstFolderStr *string

	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Compute a mirror plan and enqueue its copy/delete tasks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMirrorExecute(cmd.Context(), *srcSideStr, *srcFolderStr, *dstSideStr, *dstFolderStr)
		},
	}

	srcSideStr, srcFolderStr, dstSideStr, dstFolderStr = mirrorFlags(cmd)

	return cmd
}

func runMirrorExecute(ctx context.Context, srcSideStr, srcFolderStr, dstSideStr, dstFolderStr string) error {
	cc := mustCLIContext(ctx)

	srcSide, srcFolder, dstSide, dstFolder, err := resolveMirrorArgs(srcSideStr, srcFolderStr, dstSideStr, dstFolderStr)
	if err != nil {
		return err
	}

	eng, err := openEngine(ctx, cc)
	if err != nil {
		return fmt.Errorf("opening engine: %w", err)
	}
	defer eng.Close()

	plan := eng.MirrorPlan(srcSide, srcFolder, dstSide, dstFolder)

	copyIDs, deleteIDs, err := eng.MirrorExecute(ctx, plan)
	if err != nil {
		return fmt.Errorf("executing mirror plan: %w", err)
	}

	cc.Statusf("Enqueued %d copy task(s), %d delete task(s)\n", len(copyIDs), len(deleteIDs))

	return nil
}
