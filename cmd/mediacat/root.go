package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mediacat/internal/config"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func newRootCommand() *cobra.Command {
	var configFlag string
	var initDB bool
	var showVersion bool

	ctx := newCommandContext(&configFlag)

	rootCmd := &cobra.Command{
		Use:           "mediacat",
		Short:         "Media catalog daemon and tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			if showVersion && cmd == cmd.Root() {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Fprintln(cmd.OutOrStdout(), "mediacat "+version)
				return nil
			}
			if initDB {
				return runInitDB(cmd, ctx)
			}
			return runDaemon(cmd, ctx)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "",
		fmt.Sprintf("Configuration file path (default %s)", config.DefaultConfigPath))
	rootCmd.Flags().BoolVar(&initDB, "init-db", false, "Create the catalog schema and exit")
	rootCmd.Flags().BoolVar(&showVersion, "version", false, "Print the version and exit")

	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newScanCommand(ctx))
	rootCmd.AddCommand(newReviewCommand(ctx))

	return rootCmd
}
