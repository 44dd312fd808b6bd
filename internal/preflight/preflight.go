package preflight

import (
	"context"
	"strings"

	"captionizer/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Workflow names accepted by RunAll.
const (
	WorkflowConvert    = "convert"
	WorkflowTranscribe = "transcribe"
	WorkflowTranslate  = "translate"
)

// RunAll executes the checks that apply to workflow. An empty workflow runs
// every check.
func RunAll(ctx context.Context, cfg *config.Config, workflow string) []Result {
	if cfg == nil {
		return nil
	}
	all := workflow == ""

	var results []Result
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))

	if all || workflow == WorkflowConvert {
		results = append(results, CheckDirectoryAccess("Import directory", cfg.Paths.ImportDir))
	}
	if all || workflow == WorkflowTranscribe {
		results = append(results, CheckDirectoryAccess("Temp directory", cfg.Paths.TempDir))
	}
	if strings.TrimSpace(cfg.Paths.OutputDir) != "" && (all || workflow != WorkflowConvert) {
		results = append(results, CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir))
	}
	if (all || workflow == WorkflowTranslate) && usesLLM(cfg) {
		results = append(results, CheckLLM(ctx, "Translation LLM", cfg.GetLLM()))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}

func usesLLM(cfg *config.Config) bool {
	provider := strings.ToLower(strings.TrimSpace(cfg.Translation.Provider))
	return provider == "" || provider == "llm"
}
