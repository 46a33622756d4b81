package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/localmodels/modellake/internal/config"
	"github.com/localmodels/modellake/internal/engine"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in setupRootCmd().
var (
	flagConfigPath string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
)

// CLIContext bundles the resolved config holder and logger threaded through
// every subcommand's RunE via the command's context. Built once in
// PersistentPreRunE.
type CLIContext struct {
	Holder *config.Holder
	Logger *slog.Logger
	JSON   bool
	Quiet  bool
}

type cliContextKey struct{}

func cliContextFrom(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok {
		return nil
	}

	return cc
}

func mustCLIContext(ctx context.Context) *CLIContext {
	cc := cliContextFrom(ctx)
	if cc == nil {
		panic("BUG: CLIContext not found in context — PersistentPreRunE must run before RunE")
	}

	return cc
}

// openEngine resolves the CLIContext's config and opens a fresh Engine
// against it. One-shot subcommands open, use, and Close an Engine for the
// duration of a single invocation; `serve` keeps its Engine open for the
// life of the daemon instead.
func openEngine(ctx context.Context, cc *CLIContext) (*engine.Engine, error) {
	return engine.Open(ctx, cc.Holder, cc.Logger)
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "modellakectl",
		Short:   "Local/Lake model storage coordination engine",
		Long:    "modellakectl coordinates a fast local model cache against a slower archival Lake, mirroring, deduplicating, and tracking provenance between the two.",
		Version: version,
		// Silence Cobra's default error/usage printing — we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "app data directory override (APP_DATA_DIR)")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "show detailed output")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newRefreshCmd())
	cmd.AddCommand(newDiffCmd())
	cmd.AddCommand(newQueueCmd())
	cmd.AddCommand(newMirrorCmd())
	cmd.AddCommand(newDedupeCmd())
	cmd.AddCommand(newSourceCmd())
	cmd.AddCommand(newBundleCmd())

	return cmd
}

// loadConfig resolves the effective configuration from the
// defaults → TOML overlay → environment override chain and stores the
// result in the command's context for use by subcommands.
func loadConfig(cmd *cobra.Command) error {
	logger := buildLogger()

	env := config.ReadEnvOverrides()
	if flagConfigPath != "" {
		env.AppDataDir = flagConfigPath
	}

	cfg, err := config.Resolve(env, logger)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	holder := config.NewHolder(cfg, config.ConfigPath(cfg.AppDataDir))

	cc := &CLIContext{Holder: holder, Logger: logger, JSON: flagJSON, Quiet: flagQuiet}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cc))

	return nil
}

// buildLogger creates an slog.Logger configured by the CLI flags.
// --verbose and --quiet are mutually exclusive (enforced by Cobra).
func buildLogger() *slog.Logger {
	level := slog.LevelWarn

	if flagVerbose {
		level = slog.LevelInfo
	}

	if flagQuiet {
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
