package main

import (
	"fmt"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"mediacat/internal/catalog"
	"mediacat/internal/config"
	"mediacat/internal/ingest"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Scan the input folder and register new media",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				scanner := ingest.NewScanner(store, cfg, ctx.ensureLogger())

				var bar *progressbar.ProgressBar
				var progress ingest.ProgressFunc
				if isTerminal(cmd.OutOrStdout()) {
					bar = progressbar.NewOptions(-1,
						progressbar.OptionSetDescription("Scanning"),
						progressbar.OptionSetWidth(40),
						progressbar.OptionShowCount(),
						progressbar.OptionShowIts(),
						progressbar.OptionSetItsString("files"),
						progressbar.OptionThrottle(200*time.Millisecond),
						progressbar.OptionClearOnFinish(),
						progressbar.OptionSetRenderBlankState(true),
					)
					progress = func(string) {
						_ = bar.Add(1)
					}
				}

				result, err := scanner.Scan(cmd.Context(), cfg.Paths.InputFolder, progress)
				if bar != nil {
					_ = bar.Finish()
				}
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(),
					"scan %s: %d discovered, %d duplicates, %d skipped, %d errors\n",
					result.SessionID, result.Discovered, result.Duplicates, result.Skipped, result.Errors)
				return nil
			})
		},
	}
}
