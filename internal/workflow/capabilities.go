package workflow

import (
	"strings"

	"captionizer/internal/config"
	"captionizer/internal/convert"
	"captionizer/internal/deps"
	"captionizer/internal/media/ffprobe"
	"captionizer/internal/services/ffmpeg"
	"captionizer/internal/services/llm"
	"captionizer/internal/services/whisperx"
	"captionizer/internal/transcribe"
	"captionizer/internal/translate"
)

// Capabilities are the external collaborators the units call.
type Capabilities struct {
	Prober     convert.Prober
	Converter  convert.Converter
	Decoder    transcribe.Decoder
	ClipWriter transcribe.ClipWriter
	Recognizer transcribe.Recognizer
	Translator translate.Translator
}

// CapabilitiesFromConfig builds the production capabilities: ffmpeg and
// ffprobe binaries, WhisperX through uvx, and either the LLM client or the
// identity translator.
func CapabilitiesFromConfig(cfg *config.Config) Capabilities {
	ff := ffmpeg.New(cfg.FFmpegBinary())
	probe := ffprobe.New(deps.ResolveFFprobe(cfg.FFmpegBinary(), cfg.FFprobeBinary()), nil)
	recognizer := whisperx.NewService(whisperx.Config{
		Model:       cfg.WhisperX.Model,
		CUDAEnabled: cfg.WhisperX.CUDAEnabled,
		VADMethod:   cfg.WhisperX.VADMethod,
		HFToken:     cfg.WhisperX.HFToken,
	})
	return Capabilities{
		Prober:     probe,
		Converter:  ff,
		Decoder:    ff,
		ClipWriter: ff,
		Recognizer: recognizer,
		Translator: translatorFromConfig(cfg),
	}
}

func translatorFromConfig(cfg *config.Config) translate.Translator {
	if strings.EqualFold(strings.TrimSpace(cfg.Translation.Provider), "identity") {
		return translate.Identity{}
	}
	settings := cfg.GetLLM()
	return llm.NewClient(llm.Config{
		APIKey:         settings.APIKey,
		BaseURL:        settings.BaseURL,
		Model:          settings.Model,
		Referer:        settings.Referer,
		Title:          settings.Title,
		TimeoutSeconds: settings.TimeoutSeconds,
	})
}

// merge fills unset fields of c from fallback.
func (c Capabilities) merge(fallback Capabilities) Capabilities {
	if c.Prober == nil {
		c.Prober = fallback.Prober
	}
	if c.Converter == nil {
		c.Converter = fallback.Converter
	}
	if c.Decoder == nil {
		c.Decoder = fallback.Decoder
	}
	if c.ClipWriter == nil {
		c.ClipWriter = fallback.ClipWriter
	}
	if c.Recognizer == nil {
		c.Recognizer = fallback.Recognizer
	}
	if c.Translator == nil {
		c.Translator = fallback.Translator
	}
	return c
}
