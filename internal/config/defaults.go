package config

const (
	defaultImportDir          = "~/.local/share/captionizer/imports"
	defaultLogDir             = "~/.local/share/captionizer/logs"
	defaultHistoryPath        = "~/.local/share/captionizer/history.db"
	defaultTempDirFallback    = "~/.cache/captionizer/temp"
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultTranscriptionMode  = "segmented"
	defaultAnalysisSampleRate = 22050
	defaultSilenceThresholdDB = 40
	defaultFrameLength        = 2048
	defaultHopLength          = 3072
	defaultFillerCaption      = "......"
	defaultTempRetentionDays  = 7
	defaultTempMaxGiB         = 10
	defaultWhisperXModel      = "large-v3"
	defaultWhisperXVADMethod  = "silero"
	defaultTranslationSource  = "auto"
	defaultTranslationTarget  = "en"
	defaultTranslator         = "llm"
	defaultLLMBaseURL         = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel           = "google/gemini-3-flash-preview"
	defaultLLMReferer         = "https://github.com/captionizer/captionizer"
	defaultLLMTitle           = "Captionizer Translator"
	defaultLLMTimeoutSeconds  = 60
	defaultPollIntervalMS     = 1000
	defaultDequeueTimeoutMS   = 1000
	defaultQueueCapacity      = 256
	defaultNotifyTimeout      = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ImportDir:   defaultImportDir,
			TempDir:     defaultTempDir(),
			LogDir:      defaultLogDir,
			HistoryPath: defaultHistoryPath,
		},
		Conversion: Conversion{
			AudioExtensions: []string{"mp3", "ogg", "m4a"},
			VideoExtensions: []string{"mp4", "mkv", "mov"},
		},
		Transcription: Transcription{
			Mode:               defaultTranscriptionMode,
			SampleRate:         defaultAnalysisSampleRate,
			SilenceThresholdDB: defaultSilenceThresholdDB,
			FrameLength:        defaultFrameLength,
			HopLength:          defaultHopLength,
			FillerCaptions:     []string{defaultFillerCaption},
			TempRetentionDays:  defaultTempRetentionDays,
			TempMaxGiB:         defaultTempMaxGiB,
		},
		WhisperX: WhisperX{
			Model:     defaultWhisperXModel,
			VADMethod: defaultWhisperXVADMethod,
		},
		Translation: Translation{
			Provider:       defaultTranslator,
			SourceLanguage: defaultTranslationSource,
			TargetLanguage: defaultTranslationTarget,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Referer:        defaultLLMReferer,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Workflow: Workflow{
			PollIntervalMS:   defaultPollIntervalMS,
			DequeueTimeoutMS: defaultDequeueTimeoutMS,
			QueueCapacity:    defaultQueueCapacity,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			ItemErrors:     true,
			Batches:        true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
