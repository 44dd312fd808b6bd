package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	// OutputDir receives transcripts and translations. Empty writes next to the source.
	OutputDir string `toml:"output_dir"`
	// ImportDir receives canonical WAV files produced by conversion.
	ImportDir   string `toml:"import_dir"`
	TempDir     string `toml:"temp_dir"`
	LogDir      string `toml:"log_dir"`
	HistoryPath string `toml:"history_path"`
}

// Conversion contains media import settings.
type Conversion struct {
	AudioExtensions []string `toml:"audio_extensions"`
	VideoExtensions []string `toml:"video_extensions"`
	// SampleRate forces the canonical WAV sample rate. Zero keeps the source rate.
	SampleRate int `toml:"sample_rate"`
}

// Transcription contains speech recognition and segmentation settings.
type Transcription struct {
	Mode               string   `toml:"mode"`
	Language           string   `toml:"language"`
	SampleRate         int      `toml:"sample_rate"`
	SilenceThresholdDB float64  `toml:"silence_threshold_db"`
	FrameLength        int      `toml:"frame_length"`
	HopLength          int      `toml:"hop_length"`
	FillerCaptions     []string `toml:"filler_captions"`
	TempRetentionDays  int      `toml:"temp_retention_days"`
	TempMaxGiB         int      `toml:"temp_max_gib"`
}

// WhisperX contains settings for the speech recognition backend.
type WhisperX struct {
	Model       string `toml:"model"`
	CUDAEnabled bool   `toml:"cuda_enabled"`
	VADMethod   string `toml:"vad_method"`
	HFToken     string `toml:"hf_token"`
}

// Translation contains language selection for the translate workflow.
type Translation struct {
	// Provider selects the translation backend: "llm" or "identity".
	Provider       string `toml:"provider"`
	SourceLanguage string `toml:"source_language"`
	TargetLanguage string `toml:"target_language"`
}

// LLM contains connection settings for the translation endpoint.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Workflow contains supervisor timing.
type Workflow struct {
	PollIntervalMS   int `toml:"poll_interval_ms"`
	DequeueTimeoutMS int `toml:"dequeue_timeout_ms"`
	QueueCapacity    int `toml:"queue_capacity"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	ItemErrors     bool   `toml:"item_errors"`
	Batches        bool   `toml:"batches"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format            string            `toml:"format"`
	Level             string            `toml:"level"`
	WorkflowOverrides map[string]string `toml:"workflow_overrides"`
}

// Config encapsulates all configuration values for Captionizer.
type Config struct {
	Paths         Paths         `toml:"paths"`
	Conversion    Conversion    `toml:"conversion"`
	Transcription Transcription `toml:"transcription"`
	WhisperX      WhisperX      `toml:"whisperx"`
	Translation   Translation   `toml:"translation"`
	LLM           LLM           `toml:"llm"`
	Workflow      Workflow      `toml:"workflow"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/captionizer/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("captionizer.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the working directories. OutputDir is only
// created when configured.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.ImportDir, c.Paths.TempDir, c.Paths.LogDir, filepath.Dir(c.Paths.HistoryPath)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.OutputDir) != "" {
		if err := os.MkdirAll(c.Paths.OutputDir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", c.Paths.OutputDir, err)
		}
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable name.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// FFprobeBinary returns the ffprobe executable name used for media inspection.
func (c *Config) FFprobeBinary() string {
	return "ffprobe"
}

// PollInterval returns the supervisor tick.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Workflow.PollIntervalMS) * time.Millisecond
}

// DequeueTimeout returns how long a supervisor blocks on an empty queue.
func (c *Config) DequeueTimeout() time.Duration {
	return time.Duration(c.Workflow.DequeueTimeoutMS) * time.Millisecond
}

// TempRetention returns the age after which temp clips are removed.
func (c *Config) TempRetention() time.Duration {
	return time.Duration(c.Transcription.TempRetentionDays) * 24 * time.Hour
}

// TempMaxBytes returns the size ceiling for the temp directory.
func (c *Config) TempMaxBytes() int64 {
	return int64(c.Transcription.TempMaxGiB) << 30
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultTempDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "captionizer", "temp")
	}
	return defaultTempDirFallback
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains the LLM settings handed to the translation client.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// GetLLM returns the LLM connection settings.
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		APIKey:         strings.TrimSpace(c.LLM.APIKey),
		BaseURL:        strings.TrimSpace(c.LLM.BaseURL),
		Model:          strings.TrimSpace(c.LLM.Model),
		Referer:        strings.TrimSpace(c.LLM.Referer),
		Title:          strings.TrimSpace(c.LLM.Title),
		TimeoutSeconds: c.LLM.TimeoutSeconds,
	}
}

// IsAudioExtension reports whether ext (with or without dot) is a configured audio container.
func (c *Config) IsAudioExtension(ext string) bool {
	return containsExt(c.Conversion.AudioExtensions, ext)
}

// IsVideoExtension reports whether ext (with or without dot) is a configured video container.
func (c *Config) IsVideoExtension(ext string) bool {
	return containsExt(c.Conversion.VideoExtensions, ext)
}

func containsExt(list []string, ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	for _, candidate := range list {
		if candidate == ext {
			return true
		}
	}
	return false
}
