package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/localmodels/modellake/internal/queue"
)

func newQueueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and control the durable task queue",
	}

	cmd.AddCommand(newQueueListCmd())
	cmd.AddCommand(newQueuePauseCmd())
	cmd.AddCommand(newQueueResumeCmd())
	cmd.AddCommand(newQueueCancelCmd())

	return cmd
}

func newQueueListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List queued, running, and recently finished tasks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runQueueList(cmd.Context())
		},
	}
}

func runQueueList(ctx context.Context) error {
	cc := mustCLIContext(ctx)

	eng, err := openEngine(ctx, cc)
	if err != nil {
		return fmt.Errorf("opening engine: %w", err)
	}
	defer eng.Close()

	tasks, err := eng.ListTasks(ctx)
	if err != nil {
		return fmt.Errorf("listing tasks: %w", err)
	}

	if cc.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		return enc.Encode(tasks)
	}

	printQueueText(tasks, cc.Quiet)

	return nil
}

func printQueueText(tasks []queue.Task, quiet bool) {
	if len(tasks) == 0 {
		statusf(quiet, "Queue is empty.\n")
		return
	}

	headers := []string{"ID", "TYPE", "STATUS", "CREATED"}
	rows := make([][]string, 0, len(tasks))

	for _, t := range tasks {
		rows = append(rows, []string{t.ID, string(t.Type), string(t.Status), formatTime(t.CreatedAt)})
	}

	printTable(os.Stdout, headers, rows)
}

func newQueuePauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Pause the task queue; running tasks finish, no new ones start",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runQueuePause(cmd.Context())
		},
	}
}

func runQueuePause(ctx context.Context) error {
	cc := mustCLIContext(ctx)

	eng, err := openEngine(ctx, cc)
	if err != nil {
		return fmt.Errorf("opening engine: %w", err)
	}
	defer eng.Close()

	if err := eng.PauseQueue(ctx); err != nil {
		return fmt.Errorf("pausing queue: %w", err)
	}

	cc.Statusf("Queue paused\n")

	return nil
}

func newQueueResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume",
		Short: "Resume a paused task queue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runQueueResume(cmd.Context())
		},
	}
}

func runQueueResume(ctx context.Context) error {
	cc := mustCLIContext(ctx)

	eng, err := openEngine(ctx, cc)
	if err != nil {
		return fmt.Errorf("opening engine: %w", err)
	}
	defer eng.Close()

	if err := eng.ResumeQueue(ctx); err != nil {
		return fmt.Errorf("resuming queue: %w", err)
	}

	cc.Statusf("Queue resumed\n")

	return nil
}

func newQueueCancelCmd() *cobra.Command {
	var flagAll bool

	cmd := &cobra.Command{
		Use:   "cancel [task-id]",
		Short: "Cancel one task, or every pending/running task with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueueCancel(cmd.Context(), args, flagAll)
		},
	}

	cmd.Flags().BoolVar(&flagAll, "all", false, "cancel every pending and running task")

	return cmd
}

func runQueueCancel(ctx context.Context, args []string, all bool) error {
	cc := mustCLIContext(ctx)

	if !all && len(args) == 0 {
		return fmt.Errorf("either a task ID or --all is required")
	}

	eng, err := openEngine(ctx, cc)
	if err != nil {
		return fmt.Errorf("opening engine: %w", err)
	}
	defer eng.Close()

	if all {
		if err := eng.CancelAllTasks(ctx); err != nil {
			return fmt.Errorf("cancelling all tasks: %w", err)
		}

		cc.Statusf("All tasks cancelled\n")

		return nil
	}

	if err := eng.CancelTask(ctx, args[0]); err != nil {
		return fmt.Errorf("cancelling task %s: %w", args[0], err)
	}

	cc.Statusf("Task %s cancelled\n", args[0])

	return nil
}
