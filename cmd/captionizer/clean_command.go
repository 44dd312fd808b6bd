package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newCleanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Apply the temp directory retention policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			m, err := ctx.newManager()
			if err != nil {
				return err
			}
			result, err := m.CleanTemp(time.Now())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Temp directory: %s\n", cfg.Paths.TempDir)
			fmt.Fprintf(out, "Expired (older than %d days): %d\n", cfg.Transcription.TempRetentionDays, len(result.Expired))
			fmt.Fprintf(out, "Evicted (over %d GiB): %d\n", cfg.Transcription.TempMaxGiB, len(result.Evicted))
			fmt.Fprintf(out, "Freed %s, %s remaining\n",
				humanize.IBytes(uint64(result.FreedBytes)), humanize.IBytes(uint64(result.RemainingSum)))
			return nil
		},
	}
}
