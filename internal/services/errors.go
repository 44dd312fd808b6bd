package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool      = errors.New("external tool error")
	ErrValidation        = errors.New("validation error")
	ErrConfiguration     = errors.New("configuration error")
	ErrNotFound          = errors.New("not found")
	ErrTimeout           = errors.New("timeout")
	ErrTransient         = errors.New("transient failure")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrNoAudioTrack      = errors.New("no audio track")
	ErrNoSpeech          = errors.New("no speech detected")
	ErrCancelled         = errors.New("cancelled")
	ErrBatchHalted       = errors.New("batch halted")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrExternalTool
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind is the user-facing classification of a job failure.
type Kind string

const (
	KindNone              Kind = ""
	KindNotFound          Kind = "not_found"
	KindUnsupportedFormat Kind = "unsupported_format"
	KindNoAudioTrack      Kind = "no_audio_track"
	KindNoSpeech          Kind = "no_speech"
	KindTransientNetwork  Kind = "transient_network"
	KindCancelled         Kind = "cancelled"
	KindNotProcessed      Kind = "not_processed"
	KindUnexpected        Kind = "unexpected"
)

// Classify maps an error chain onto the job failure taxonomy.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, ErrBatchHalted):
		return KindNotProcessed
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrNoAudioTrack):
		return KindNoAudioTrack
	case errors.Is(err, ErrUnsupportedFormat):
		return KindUnsupportedFormat
	case errors.Is(err, ErrNoSpeech):
		return KindNoSpeech
	case errors.Is(err, ErrTransient), errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTransientNetwork
	default:
		return KindUnexpected
	}
}

// Halts reports whether a failure of this kind stops the batch from taking new work.
func (k Kind) Halts() bool {
	return k == KindTransientNetwork
}

// Hint returns the suggested next step logged alongside a failure of this kind.
func (k Kind) Hint() string {
	switch k {
	case KindNotFound:
		return "check that the source path still exists"
	case KindUnsupportedFormat:
		return "add the extension to the conversion lists or convert the file first"
	case KindNoAudioTrack:
		return "choose a video that contains an audio stream"
	case KindNoSpeech:
		return "lower transcription.silence_threshold_db or use full mode"
	case KindTransientNetwork:
		return "check network connectivity and llm.base_url, then rerun the batch"
	case KindNotProcessed:
		return "rerun the batch once the earlier error is resolved"
	default:
		return "check logs for details"
	}
}

// Failure reports whether the kind represents a job failure (cancellation is not one).
func (k Kind) Failure() bool {
	return k != KindNone && k != KindCancelled
}

// Describe returns the title and message shown to users for a job failure.
func Describe(err error) (title, message string) {
	switch Classify(err) {
	case KindNotFound:
		return "File Not Found", "The source file no longer exists."
	case KindUnsupportedFormat:
		return "File Excluded", "File type not supported."
	case KindNoAudioTrack:
		return "File Excluded", "No audio found in video."
	case KindNoSpeech:
		return "Nothing To Transcribe", "No speech detected in audio."
	case KindTransientNetwork:
		return "Connection Error", "Unable to reach the translation service, please check your connection."
	case KindCancelled:
		return "Cancelled", "The job was cancelled."
	case KindNotProcessed:
		return "Not Processed", "The batch stopped before this file was processed."
	case KindNone:
		return "", ""
	default:
		return "Unexpected Error", strings.TrimSpace(err.Error())
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
