package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/localmodels/modellake/internal/adapter"
	"github.com/localmodels/modellake/internal/config"
)

func newServeCmd() *cobra.Command {
	var flagAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP/WebSocket API server as a long-lived daemon",
		Long: `Start the engine and serve its HTTP/WebSocket API until interrupted.
Only one serve instance may run per app data directory; a PID/lock file
enforces this.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), flagAddr)
		},
	}

	cmd.Flags().StringVar(&flagAddr, "addr", "", "listen address override (default: config listen_addr)")

	return cmd
}

func runServe(ctx context.Context, addrFlag string) error {
	cc := mustCLIContext(ctx)

	cfg := cc.Holder.Config()

	addr := cfg.ListenAddr
	if addrFlag != "" {
		addr = addrFlag
	}

	pidPath := config.PIDFilePath(cfg.AppDataDir)

	cleanup, err := writePIDFile(pidPath)
	if err != nil {
		return fmt.Errorf("acquiring daemon lock: %w", err)
	}
	defer cleanup()

	eng, err := openEngine(ctx, cc)
	if err != nil {
		return fmt.Errorf("opening engine: %w", err)
	}
	defer eng.Close()

	srv := adapter.New(eng, cc.Logger)

	shutdownCtx := shutdownContext(ctx, cc.Logger)

	cc.Statusf("Listening on %s\n", addr)
	cc.Logger.Info("serve: starting", "addr", addr, "app_data_dir", cfg.AppDataDir)

	if err := srv.ListenAndServe(shutdownCtx, addr); err != nil {
		return fmt.Errorf("serving: %w", err)
	}

	cc.Logger.Info("serve: shut down cleanly")

	return nil
}
