package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"mediacat/internal/catalog"
	"mediacat/internal/config"
	"mediacat/internal/daemon"
)

// runDaemon is the default invocation: bring the watched folders into
// existence, open the catalog, and run the daemon until a signal arrives.
func runDaemon(cmd *cobra.Command, cmdCtx *commandContext) error {
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return err
	}
	if err := ensureWatchedFolders(cfg); err != nil {
		return err
	}

	store, err := catalog.Open(cfg, cmdCtx.ensureLogger())
	if err != nil {
		return err
	}
	defer store.Close()

	d, err := daemon.New(cfg, store, cmdCtx.ensureLogger())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintln(cmd.OutOrStdout(), "mediacat daemon running; press Ctrl+C to stop")
	return d.Run(ctx)
}

// runInitDB creates the catalog schema and exits. Opening the store runs
// schema initialization, so a second invocation is a no-op.
func runInitDB(cmd *cobra.Command, cmdCtx *commandContext) error {
	return cmdCtx.withStore(func(cfg *config.Config, store *catalog.Store) error {
		fmt.Fprintf(cmd.OutOrStdout(), "catalog initialized at %s\n", store.Path())
		return nil
	})
}

func ensureWatchedFolders(cfg *config.Config) error {
	for _, dir := range []string{cfg.Paths.InputFolder, cfg.Paths.OutputFolder} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create folder %s: %w", dir, err)
		}
	}
	return nil
}
