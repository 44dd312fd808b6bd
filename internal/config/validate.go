package config

import (
	"errors"
	"fmt"
	"strings"

	"captionizer/internal/language"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateConversion(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateWhisperX(); err != nil {
		return err
	}
	if err := c.validateTranslation(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateConversion() error {
	if len(c.Conversion.AudioExtensions) == 0 && len(c.Conversion.VideoExtensions) == 0 {
		return errors.New("conversion.audio_extensions or conversion.video_extensions must list at least one extension")
	}
	for _, ext := range c.Conversion.AudioExtensions {
		if containsExt(c.Conversion.VideoExtensions, ext) {
			return fmt.Errorf("conversion: extension %q listed as both audio and video", ext)
		}
	}
	if c.Conversion.SampleRate < 0 {
		return errors.New("conversion.sample_rate must be >= 0")
	}
	return nil
}

func (c *Config) validateTranscription() error {
	switch c.Transcription.Mode {
	case "segmented", "full":
	default:
		return fmt.Errorf("transcription.mode must be \"segmented\" or \"full\", got %q", c.Transcription.Mode)
	}
	if err := ensurePositiveMap(map[string]int{
		"transcription.sample_rate":  c.Transcription.SampleRate,
		"transcription.frame_length": c.Transcription.FrameLength,
		"transcription.hop_length":   c.Transcription.HopLength,
	}); err != nil {
		return err
	}
	if c.Transcription.SilenceThresholdDB <= 0 {
		return errors.New("transcription.silence_threshold_db must be positive")
	}
	if c.Transcription.Language != "" {
		if _, ok := language.Lookup(c.Transcription.Language); !ok {
			return fmt.Errorf("transcription.language: unknown language %q", c.Transcription.Language)
		}
	}
	return nil
}

func (c *Config) validateWhisperX() error {
	switch c.WhisperX.VADMethod {
	case "silero", "pyannote":
	default:
		return fmt.Errorf("whisperx.vad_method must be \"silero\" or \"pyannote\", got %q", c.WhisperX.VADMethod)
	}
	if c.WhisperX.VADMethod == "pyannote" && c.WhisperX.HFToken == "" {
		return errors.New("whisperx.hf_token must be set when whisperx.vad_method is pyannote (or set HF_TOKEN)")
	}
	return nil
}

func (c *Config) validateTranslation() error {
	switch c.Translation.Provider {
	case "llm", "identity":
	default:
		return fmt.Errorf("translation.provider must be \"llm\" or \"identity\", got %q", c.Translation.Provider)
	}
	if _, ok := language.Lookup(c.Translation.SourceLanguage); !ok {
		return fmt.Errorf("translation.source_language: unknown language %q", c.Translation.SourceLanguage)
	}
	target, ok := language.Lookup(c.Translation.TargetLanguage)
	if !ok {
		return fmt.Errorf("translation.target_language: unknown language %q", c.Translation.TargetLanguage)
	}
	if target.IsAuto() {
		return errors.New("translation.target_language cannot be auto")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"workflow.poll_interval_ms":         c.Workflow.PollIntervalMS,
		"workflow.dequeue_timeout_ms":       c.Workflow.DequeueTimeoutMS,
		"workflow.queue_capacity":           c.Workflow.QueueCapacity,
		"notifications.request_timeout":     c.Notifications.RequestTimeout,
		"llm.timeout_seconds":               c.LLM.TimeoutSeconds,
		"transcription.temp_max_gib":        c.Transcription.TempMaxGiB,
		"transcription.temp_retention_days": c.Transcription.TempRetentionDays,
	})
}

func (c *Config) validateLogging() error {
	for workflow, level := range c.Logging.WorkflowOverrides {
		switch workflow {
		case "convert", "transcribe", "translate":
		default:
			return fmt.Errorf("logging.workflow_overrides: unknown workflow %q", workflow)
		}
		switch level {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("logging.workflow_overrides.%s: unsupported level %q", workflow, level)
		}
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		return errors.New("logging.level must be set")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
