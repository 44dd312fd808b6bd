package preflight

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"captionizer/internal/config"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func llmServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"ok\":true}"}}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckLLM(t *testing.T) {
	ok := CheckLLM(context.Background(), "LLM", config.LLMConfig{APIKey: "k", BaseURL: llmServer(t, http.StatusOK).URL, Model: "m"})
	if !ok.Passed {
		t.Fatalf("expected pass, got %s", ok.Detail)
	}
	denied := CheckLLM(context.Background(), "LLM", config.LLMConfig{APIKey: "k", BaseURL: llmServer(t, http.StatusUnauthorized).URL, Model: "m"})
	if denied.Passed {
		t.Fatal("expected failure for 401")
	}
	missing := CheckLLM(context.Background(), "LLM", config.LLMConfig{})
	if missing.Passed || missing.Detail != "API key missing" {
		t.Fatalf("missing key = %+v", missing)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil, ""); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Paths.ImportDir = t.TempDir()
	cfg.Paths.TempDir = t.TempDir()
	cfg.Paths.OutputDir = ""
	cfg.Translation.Provider = "identity"
	return cfg
}

func TestRunAll_ScopesChecksToWorkflow(t *testing.T) {
	cfg := testConfig(t)

	tests := map[string][]string{
		WorkflowConvert:    {"Log directory", "Import directory"},
		WorkflowTranscribe: {"Log directory", "Temp directory"},
		WorkflowTranslate:  {"Log directory"},
		"":                 {"Log directory", "Import directory", "Temp directory"},
	}
	for workflow, want := range tests {
		results := RunAll(context.Background(), &cfg, workflow)
		var names []string
		for _, r := range results {
			names = append(names, r.Name)
			if !r.Passed {
				t.Errorf("%s: check %q failed: %s", workflow, r.Name, r.Detail)
			}
		}
		if strings.Join(names, ",") != strings.Join(want, ",") {
			t.Errorf("%q: checks = %v, want %v", workflow, names, want)
		}
	}
}

func TestRunAll_IncludesLLMForTranslate(t *testing.T) {
	cfg := testConfig(t)
	cfg.Translation.Provider = "llm"
	cfg.LLM.APIKey = "key"
	cfg.LLM.BaseURL = llmServer(t, http.StatusOK).URL
	cfg.Paths.OutputDir = filepath.Join(t.TempDir(), "missing")

	results := RunAll(context.Background(), &cfg, WorkflowTranslate)
	failed := Failed(results)
	if len(results) != 3 || len(failed) != 1 || failed[0].Name != "Output directory" {
		t.Fatalf("results = %+v", results)
	}
	if results[2].Name != "Translation LLM" || !results[2].Passed {
		t.Fatalf("llm result = %+v", results[2])
	}
}

func TestCheckLLMFromConfigDisabled(t *testing.T) {
	cfg := testConfig(t)
	result := CheckLLMFromConfig(context.Background(), &cfg)
	if !result.Passed || !strings.Contains(result.Detail, "identity") {
		t.Fatalf("result = %+v", result)
	}
}

func TestCheckSystemDeps_ScopesBinariesToWorkflow(t *testing.T) {
	cfg := config.Default()
	tests := []struct {
		workflow string
		want     []string
	}{
		{workflow: "", want: []string{"FFmpeg", "FFprobe", "uvx"}},
		{workflow: WorkflowConvert, want: []string{"FFmpeg", "FFprobe"}},
		{workflow: WorkflowTranscribe, want: []string{"FFmpeg", "uvx"}},
		{workflow: WorkflowTranslate, want: nil},
	}
	for _, tc := range tests {
		t.Run("workflow="+tc.workflow, func(t *testing.T) {
			var got []string
			for _, status := range CheckSystemDeps(context.Background(), &cfg, tc.workflow) {
				got = append(got, status.Name)
				if status.Description == "" {
					t.Fatalf("%s has no description", status.Name)
				}
			}
			if strings.Join(got, ",") != strings.Join(tc.want, ",") {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}
