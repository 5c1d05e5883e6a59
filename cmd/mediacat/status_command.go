package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"mediacat/internal/catalog"
	"mediacat/internal/config"
)

// statusOrder fixes the row order of the per-status summary.
var statusOrder = []catalog.Status{
	catalog.StatusPending,
	catalog.StatusFingerprinting,
	catalog.StatusMetadataLookup,
	catalog.StatusMLScoring,
	catalog.StatusReviewNeeded,
	catalog.StatusOrganizing,
	catalog.StatusCompleted,
	catalog.StatusFailed,
	catalog.StatusSkipped,
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var recent int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show catalog totals and recent files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				total := 0
				rows := make([][]string, 0, len(statusOrder))
				for _, status := range statusOrder {
					count := stats[status]
					total += count
					if count == 0 {
						continue
					}
					rows = append(rows, []string{string(status), strconv.Itoa(count)})
				}
				if total == 0 {
					fmt.Fprintln(out, "catalog is empty")
					return nil
				}
				rows = append(rows, []string{"total", strconv.Itoa(total)})
				fmt.Fprintln(out, renderTable(
					[]string{"Status", "Files"}, rows,
					[]columnAlignment{alignLeft, alignRight}))

				if recent <= 0 {
					return nil
				}
				files, err := store.Query(cmd.Context(), catalog.Filter{Limit: recent, Newest: true})
				if err != nil {
					return err
				}
				fileRows := make([][]string, 0, len(files))
				for _, f := range files {
					fileRows = append(fileRows, []string{
						strconv.FormatInt(f.ID, 10),
						f.Filename,
						string(f.MediaType),
						string(f.Status),
						humanize.IBytes(uint64(f.FileSize)),
						humanize.Time(f.CreatedAt),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "File", "Type", "Status", "Size", "Added"}, fileRows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft}))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&recent, "recent", 10, "Number of recent files to list (0 disables)")
	return cmd
}

func truncate(value string, max int) string {
	if max <= 3 || len(value) <= max {
		return value
	}
	return strings.TrimSpace(value[:max-3]) + "..."
}
