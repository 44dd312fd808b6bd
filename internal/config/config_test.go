package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"captionizer/internal/config"
)

func TestLoadDefaultsExpandPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("XDG_CACHE_HOME", "")
	t.Setenv("OPENROUTER_API_KEY", "env-key")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantImport := filepath.Join(tempHome, ".local", "share", "captionizer", "imports")
	if cfg.Paths.ImportDir != wantImport {
		t.Fatalf("unexpected import dir: got %q want %q", cfg.Paths.ImportDir, wantImport)
	}
	if cfg.Paths.OutputDir != "" {
		t.Fatalf("expected empty output dir, got %q", cfg.Paths.OutputDir)
	}
	if cfg.Transcription.Mode != "segmented" {
		t.Fatalf("unexpected mode %q", cfg.Transcription.Mode)
	}
	if cfg.Transcription.HopLength != 3072 || cfg.Transcription.FrameLength != 2048 {
		t.Fatalf("unexpected segmentation defaults: %+v", cfg.Transcription)
	}
	if cfg.LLM.APIKey != "env-key" {
		t.Fatalf("expected LLM key from env, got %q", cfg.LLM.APIKey)
	}
	if cfg.PollInterval().Milliseconds() != 1000 {
		t.Fatalf("unexpected poll interval %v", cfg.PollInterval())
	}
	if cfg.TempMaxBytes() != 10<<30 {
		t.Fatalf("unexpected temp ceiling %d", cfg.TempMaxBytes())
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.ImportDir, cfg.Paths.TempDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "captionizer.toml")

	type payload struct {
		Paths struct {
			OutputDir string `toml:"output_dir"`
		} `toml:"paths"`
		Conversion struct {
			AudioExtensions []string `toml:"audio_extensions"`
		} `toml:"conversion"`
		Translation struct {
			TargetLanguage string `toml:"target_language"`
		} `toml:"translation"`
	}
	custom := payload{}
	custom.Paths.OutputDir = filepath.Join(tempDir, "out")
	custom.Conversion.AudioExtensions = []string{".MP3", "flac", "mp3"}
	custom.Translation.TargetLanguage = "Malay"

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("unexpected resolution: %q exists=%v", resolved, exists)
	}
	if cfg.Paths.OutputDir != custom.Paths.OutputDir {
		t.Fatalf("unexpected output dir %q", cfg.Paths.OutputDir)
	}
	if got := strings.Join(cfg.Conversion.AudioExtensions, ","); got != "mp3,flac" {
		t.Fatalf("expected normalized extensions, got %q", got)
	}
	if !cfg.IsAudioExtension(".FLAC") {
		t.Fatal("expected flac to be an audio extension")
	}
	if cfg.IsVideoExtension("mp3") {
		t.Fatal("mp3 is not a video extension")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"mode", func(c *config.Config) { c.Transcription.Mode = "stream" }, "transcription.mode"},
		{"hop", func(c *config.Config) { c.Transcription.HopLength = 0 }, "transcription.hop_length"},
		{"provider", func(c *config.Config) { c.Translation.Provider = "carrier-pigeon" }, "translation.provider"},
		{"target auto", func(c *config.Config) { c.Translation.TargetLanguage = "auto" }, "cannot be auto"},
		{"unknown target", func(c *config.Config) { c.Translation.TargetLanguage = "Klingon" }, "translation.target_language"},
		{"overlap", func(c *config.Config) { c.Conversion.VideoExtensions = []string{"mp3"} }, "both audio and video"},
		{"override", func(c *config.Config) {
			c.Logging.WorkflowOverrides = map[string]string{"encode": "debug"}
		}, "unknown workflow"},
		{"pyannote", func(c *config.Config) { c.WhisperX.VADMethod = "pyannote" }, "hf_token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q in %v", tt.want, err)
			}
		})
	}
}

func TestSampleConfigLoads(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
	if !exists {
		t.Fatal("expected sample config to exist")
	}
	if cfg.Translation.TargetLanguage != "en" {
		t.Fatalf("unexpected target language %q", cfg.Translation.TargetLanguage)
	}
}
