package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"slices"
	"time"

	"golang.org/x/sys/unix"

	"captionizer/internal/config"
	"captionizer/internal/deps"
	"captionizer/internal/services/llm"
)

// CheckLLM verifies that the LLM API is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt (no retries).
func CheckLLM(ctx context.Context, name string, cfg config.LLMConfig) Result {
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Referer: cfg.Referer,
		Title:   cfg.Title,
	}, llm.WithRetryMaxAttempts(1))

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeLLMError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// SystemRequirements lists the binaries each workflow executes.
func SystemRequirements(cfg *config.Config) []deps.Requirement {
	return []deps.Requirement{
		{Name: "FFmpeg", Command: cfg.FFmpegBinary(), Workflows: []string{WorkflowConvert, WorkflowTranscribe}},
		{Name: "uvx", Command: "uvx", Workflows: []string{WorkflowTranscribe}},
	}
}

// CheckSystemDeps evaluates the binaries workflow executes. An empty workflow
// checks every binary. Translation runs none.
func CheckSystemDeps(_ context.Context, cfg *config.Config, workflow string) []deps.Status {
	statuses := deps.CheckBinaries(deps.ForWorkflow(SystemRequirements(cfg), workflow))
	probe := deps.Requirement{Name: "FFprobe", Workflows: []string{WorkflowConvert}}
	if !probe.NeededBy(workflow) {
		return statuses
	}
	status := deps.CheckFFprobeForFFmpeg(cfg.FFmpegBinary(), cfg.FFprobeBinary(), probe.Workflows...)
	// FFprobe is listed right after the FFmpeg it pairs with.
	return slices.Insert(statuses, min(1, len(statuses)), status)
}

// CheckLLMFromConfig reports the translation backend without calling it when
// it is not in use.
func CheckLLMFromConfig(ctx context.Context, cfg *config.Config) Result {
	const name = "Translation LLM"
	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if !usesLLM(cfg) {
		return Result{Name: name, Passed: true, Detail: "Disabled (provider " + cfg.Translation.Provider + ")"}
	}
	return CheckLLM(ctx, name, cfg.GetLLM())
}

// summarizeLLMError produces a human-readable summary for LLM health check failures.
func summarizeLLMError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (LLM API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (LLM API unreachable)"
	}
	return err.Error()
}
