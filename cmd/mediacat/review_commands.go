package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"mediacat/internal/catalog"
	"mediacat/internal/config"
)

func newReviewCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Inspect and resolve the human review queue",
	}
	cmd.AddCommand(newReviewListCommand(ctx))
	cmd.AddCommand(newReviewApproveCommand(ctx))
	cmd.AddCommand(newReviewRejectCommand(ctx))
	cmd.AddCommand(newReviewCorrectCommand(ctx))
	return cmd
}

func newReviewListCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List files waiting for review",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
				items, err := store.PendingReviews(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "review queue is empty")
					return nil
				}

				rows := make([][]string, 0, len(items))
				for _, item := range items {
					file, err := store.GetByID(cmd.Context(), item.MediaFileID)
					if err != nil {
						return err
					}
					rows = append(rows, []string{
						strconv.FormatInt(item.MediaFileID, 10),
						file.Filename,
						fmt.Sprintf("%.2f", item.ConfidenceScore),
						truncate(item.Reason, 48),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"File ID", "File", "Confidence", "Reason"}, rows,
					[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft}))
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum entries to list")
	return cmd
}

func newReviewApproveCommand(ctx *commandContext) *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   "approve <file-id>",
		Short: "Approve the suggested metadata and send the file onward",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return resolveReview(cmd, ctx, args[0], catalog.ResolveDecision{
				Status:        catalog.ReviewApproved,
				ReviewerNotes: notes,
			})
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "Reviewer notes to record")
	return cmd
}

func newReviewRejectCommand(ctx *commandContext) *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   "reject <file-id>",
		Short: "Reject the file; it is marked failed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return resolveReview(cmd, ctx, args[0], catalog.ResolveDecision{
				Status:        catalog.ReviewRejected,
				ReviewerNotes: notes,
			})
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "Reviewer notes to record")
	return cmd
}

func newReviewCorrectCommand(ctx *commandContext) *cobra.Command {
	var (
		title  string
		artist string
		album  string
		year   int
		notes  string
	)

	cmd := &cobra.Command{
		Use:   "correct <file-id>",
		Short: "Resolve with corrected metadata and send the file onward",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			corrected := map[string]any{}
			if title != "" {
				corrected["title"] = title
			}
			if artist != "" {
				corrected["artist"] = artist
			}
			if album != "" {
				corrected["album"] = album
			}
			if year > 0 {
				corrected["year"] = year
			}
			return resolveReview(cmd, ctx, args[0], catalog.ResolveDecision{
				Status:            catalog.ReviewCorrected,
				CorrectedMetadata: corrected,
				ReviewerNotes:     notes,
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Corrected title")
	cmd.Flags().StringVar(&artist, "artist", "", "Corrected artist")
	cmd.Flags().StringVar(&album, "album", "", "Corrected album")
	cmd.Flags().IntVar(&year, "year", 0, "Corrected year")
	cmd.Flags().StringVar(&notes, "notes", "", "Reviewer notes to record")
	return cmd
}

func resolveReview(cmd *cobra.Command, ctx *commandContext, rawID string, decision catalog.ResolveDecision) error {
	fileID, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid file id %q", rawID)
	}
	return ctx.withStore(func(cfg *config.Config, store *catalog.Store) error {
		item, err := store.ResolveReview(cmd.Context(), fileID, decision)
		if err != nil {
			return err
		}
		file, err := store.GetByID(cmd.Context(), fileID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "file %d review %s; status is now %s\n",
			fileID, item.ReviewStatus, file.Status)
		return nil
	})
}
