package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"captionizer/internal/logs"
	"captionizer/internal/runlog"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		lines  int
		follow bool
		runs   bool
		batch  string
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the application log or today's run log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := filepath.Join(cfg.Paths.LogDir, "captionizer.log")
			if runs {
				path = filepath.Join(cfg.Paths.LogDir, runlog.FileName(time.Now()))
			}
			var terms []string
			if batch != "" {
				terms = append(terms, batch)
			}

			// Filtering needs the whole file; otherwise only the tail is read.
			limit := lines
			if len(terms) > 0 {
				limit = 1 << 20
			}
			tail, offset, err := logs.Last(path, limit)
			if err != nil {
				return err
			}
			tail = logs.Grep(tail, terms...)
			if len(terms) > 0 && lines > 0 && len(tail) > lines {
				tail = tail[len(tail)-lines:]
			}

			out := cmd.OutOrStdout()
			for _, line := range tail {
				fmt.Fprintln(out, line)
			}
			if !follow {
				return nil
			}
			return logs.Follow(cmd.Context(), path, offset, 250*time.Millisecond, func(line string) {
				if len(logs.Grep([]string{line}, terms...)) > 0 {
					fmt.Fprintln(out, line)
				}
			})
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until interrupted")
	cmd.Flags().BoolVar(&runs, "runs", false, "Show today's run log instead of the application log")
	cmd.Flags().StringVar(&batch, "batch", "", "Only show lines mentioning this batch id")
	return cmd
}
