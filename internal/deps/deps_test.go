package deps

import (
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}

	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}

	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}
}

func TestForWorkflow(t *testing.T) {
	reqs := []Requirement{
		{Name: "FFmpeg", Command: "ffmpeg", Workflows: []string{"convert", "transcribe"}},
		{Name: "uvx", Command: "uvx", Workflows: []string{"transcribe"}},
		{Name: "Shell", Command: "sh"},
	}
	tests := []struct {
		workflow string
		want     []string
	}{
		{workflow: "", want: []string{"FFmpeg", "uvx", "Shell"}},
		{workflow: "convert", want: []string{"FFmpeg", "Shell"}},
		{workflow: "transcribe", want: []string{"FFmpeg", "uvx", "Shell"}},
		{workflow: "translate", want: []string{"Shell"}},
	}
	for _, tc := range tests {
		var got []string
		for _, req := range ForWorkflow(reqs, tc.workflow) {
			got = append(got, req.Name)
		}
		if !slices.Equal(got, tc.want) {
			t.Errorf("ForWorkflow(%q) = %v, want %v", tc.workflow, got, tc.want)
		}
	}
}

func TestCheckBinariesDescribesWorkflows(t *testing.T) {
	results := CheckBinaries([]Requirement{
		{Name: "uvx", Command: "", Workflows: []string{"transcribe"}},
		{Name: "Shell", Command: "clearly-not-present-binary"},
	})
	if results[0].Description != "Required for transcribe" || results[0].Detail != "command not configured" {
		t.Fatalf("unexpected status %#v", results[0])
	}
	if results[1].Description != "Required by every workflow" {
		t.Fatalf("unexpected description %q", results[1].Description)
	}
}

func TestCheckFFprobeForFFmpegSidecar(t *testing.T) {
	tmp := t.TempDir()
	ffmpegPath := filepath.Join(tmp, executableName("ffmpeg"))
	ffprobePath := filepath.Join(tmp, executableName("ffprobe"))
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(ffmpegPath, script, 0o755); err != nil {
		t.Fatalf("write ffmpeg stub: %v", err)
	}
	if err := os.WriteFile(ffprobePath, script, 0o755); err != nil {
		t.Fatalf("write ffprobe sidecar: %v", err)
	}

	status := CheckFFprobeForFFmpeg(ffmpegPath, "ffprobe")
	if !status.Available {
		t.Fatalf("expected ffprobe sidecar to be available, got detail %q", status.Detail)
	}
	if status.Command != ffprobePath {
		t.Fatalf("expected ffprobe command %q, got %q", ffprobePath, status.Command)
	}
}

func TestCheckFFprobeForFFmpegPathFallback(t *testing.T) {
	tmp := t.TempDir()
	ffmpegPath := filepath.Join(tmp, executableName("ffmpeg"))
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(ffmpegPath, script, 0o755); err != nil {
		t.Fatalf("write ffmpeg stub: %v", err)
	}

	binDir := filepath.Join(tmp, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin: %v", err)
	}
	ffprobePath := filepath.Join(binDir, executableName("ffprobe"))
	if err := os.WriteFile(ffprobePath, script, 0o755); err != nil {
		t.Fatalf("write ffprobe stub: %v", err)
	}
	oldPath := os.Getenv("PATH")
	newPath := binDir
	if oldPath != "" {
		newPath = binDir + string(os.PathListSeparator) + oldPath
	}
	t.Setenv("PATH", newPath)

	status := CheckFFprobeForFFmpeg(ffmpegPath, "ffprobe")
	if !status.Available {
		t.Fatalf("expected ffprobe fallback to be available, got detail %q", status.Detail)
	}
	if status.Command != ffprobePath {
		t.Fatalf("expected ffprobe command %q, got %q", ffprobePath, status.Command)
	}
}

func TestCheckFFprobeForFFmpegNotFound(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("PATH", "")
	status := CheckFFprobeForFFmpeg(filepath.Join(tmp, executableName("ffmpeg")), "ffprobe")
	if status.Available {
		t.Fatal("expected ffprobe resolution to fail")
	}
	if status.Detail == "" {
		t.Fatal("expected detail message when ffprobe is unavailable")
	}
	if got := ResolveFFprobe("", "ffprobe"); got != "ffprobe" {
		t.Fatalf("unresolved command = %q", got)
	}
}

func executableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}
