package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"captionizer/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect past batches",
	}
	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	historyCmd.AddCommand(newHistoryClearCommand(ctx))
	return historyCmd
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.ensureHistory()
			if err != nil {
				return err
			}
			batches, err := store.ListBatches(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(batches) == 0 {
				fmt.Fprintln(out, "No batches recorded")
				return nil
			}
			now := time.Now()
			rows := make([][]string, 0, len(batches))
			for _, b := range batches {
				rows = append(rows, []string{
					shortID(b.ID),
					workflowTitle(b.Workflow),
					b.Status,
					fmt.Sprintf("%d/%d", b.Completed, b.Total),
					strconv.Itoa(b.Skipped),
					humanize.RelTime(b.StartedAt, now, "ago", "from now"),
					formatDuration(b.Duration()),
				})
			}
			fmt.Fprintln(out, renderTable("", []string{"ID", "Workflow", "Status", "Done", "Skipped", "Started", "Duration"}, rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignRight}))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum batches to show (0 for all)")
	return cmd
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <batch-id>",
		Short: "Show the jobs of one batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.ensureHistory()
			if err != nil {
				return err
			}
			id, err := resolveBatchID(cmd, store, args[0])
			if err != nil {
				return err
			}
			batch, jobs, err := store.GetBatch(cmd.Context(), id)
			if err != nil {
				if errors.Is(err, history.ErrNotFound) {
					return fmt.Errorf("batch %s not found", args[0])
				}
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Batch:    %s\n", batch.ID)
			fmt.Fprintf(out, "Workflow: %s\n", workflowTitle(batch.Workflow))
			fmt.Fprintf(out, "Status:   %s\n", batch.Status)
			fmt.Fprintf(out, "Started:  %s\n", batch.StartedAt.Local().Format(time.DateTime))
			if !batch.FinishedAt.IsZero() {
				fmt.Fprintf(out, "Duration: %s\n", formatDuration(batch.Duration()))
			}
			if batch.Error != "" {
				fmt.Fprintf(out, "Error:    %s\n", batch.Error)
			}

			rows := make([][]string, 0, len(jobs))
			for _, j := range jobs {
				detail := strings.Join(j.Outputs, "\n")
				if j.Error != "" {
					detail = j.ErrorKind + ": " + j.Error
				}
				rows = append(rows, []string{strconv.Itoa(j.Index), j.Source, j.Outcome, detail})
			}
			fmt.Fprintln(out, renderTable("", []string{"#", "File", "Outcome", "Detail"}, rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft}))
			return nil
		},
	}
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	var olderThan int
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete recorded batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.ensureHistory()
			if err != nil {
				return err
			}
			var removed int64
			if olderThan > 0 {
				removed, err = store.Prune(cmd.Context(), time.Now().AddDate(0, 0, -olderThan))
			} else {
				removed, err = store.Clear(cmd.Context())
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s batch(es)\n", humanize.Comma(removed))
			return nil
		},
	}
	cmd.Flags().IntVar(&olderThan, "older-than", 0, "Only remove finished batches older than this many days")
	return cmd
}

// resolveBatchID accepts a full id or the unique prefix shown by history list.
func resolveBatchID(cmd *cobra.Command, store *history.Store, value string) (string, error) {
	value = strings.TrimSpace(value)
	if len(value) >= 36 {
		return value, nil
	}
	batches, err := store.ListBatches(cmd.Context(), 0)
	if err != nil {
		return "", err
	}
	var match string
	for _, b := range batches {
		if strings.HasPrefix(b.ID, value) {
			if match != "" {
				return "", fmt.Errorf("batch id %q is ambiguous", value)
			}
			match = b.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("batch %s not found", value)
	}
	return match, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}
