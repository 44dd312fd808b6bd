package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"captionizer/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check external tools, directories, and the translation service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			if ctx.configPath != "" {
				fmt.Fprintf(out, "Config: %s\n", ctx.configPath)
			}

			depRows := [][]string{}
			for _, dep := range preflight.CheckSystemDeps(cmd.Context(), cfg, "") {
				detail := dep.Description
				if dep.Detail != "" {
					detail = dep.Detail
				}
				depRows = append(depRows, []string{dep.Name, dep.Command, strings.Join(dep.Workflows, ", "), statusCell(passFail(dep.Available), colorize), detail})
			}
			fmt.Fprintln(out, renderTable("Dependencies", []string{"Name", "Command", "Workflows", "Status", "Detail"}, depRows, nil))

			results := preflight.RunAll(cmd.Context(), cfg, "")
			if !hasResult(results, "Translation LLM") {
				results = append(results, preflight.CheckLLMFromConfig(cmd.Context(), cfg))
			}
			checkRows := make([][]string, 0, len(results))
			for _, r := range results {
				checkRows = append(checkRows, []string{r.Name, statusCell(passFail(r.Passed), colorize), r.Detail})
			}
			fmt.Fprintln(out, renderTable("Checks", []string{"Check", "Status", "Detail"}, checkRows, nil))

			if store, err := ctx.ensureHistory(); err == nil {
				if batches, err := store.ListBatches(cmd.Context(), 1); err == nil && len(batches) > 0 {
					last := batches[0]
					fmt.Fprintf(out, "Last batch: %s %s (%s)\n", workflowTitle(last.Workflow), last.Status,
						humanize.RelTime(last.StartedAt, time.Now(), "ago", "from now"))
				}
			}
			return nil
		},
	}
}

func hasResult(results []preflight.Result, name string) bool {
	for _, r := range results {
		if r.Name == name {
			return true
		}
	}
	return false
}
