package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"captionizer/internal/fileutil"
	"captionizer/internal/logging"
	"captionizer/internal/pipeline"
	"captionizer/internal/runlog"
	"captionizer/internal/segment"
	"captionizer/internal/services"
	"captionizer/internal/services/whisperx"
	"captionizer/internal/subtitles"
)

// RunLogTitle heads each transcription block in the run log.
const RunLogTitle = "Speech Recognition"

// Mode selects how the source is fed to the recognizer.
type Mode string

const (
	ModeSegmented Mode = "segmented"
	ModeFull      Mode = "full"
)

// ParseMode accepts "segmented" (default when blank) or "full".
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case "", ModeSegmented:
		return ModeSegmented, nil
	case ModeFull:
		return ModeFull, nil
	default:
		return "", services.Wrap(services.ErrValidation, "transcribe", "mode", fmt.Sprintf("unknown mode %q", value), nil)
	}
}

func (m Mode) label() string {
	if m == ModeFull {
		return "Full Recognition"
	}
	return "Split Recognition"
}

// Job transcribes Path. An empty OutputDir writes beside the source.
type Job struct {
	Path      string
	OutputDir string
	Mode      Mode
	Language  string
}

// Source implements pipeline.Job.
func (j Job) Source() string { return j.Path }

// Decoder loads a file as mono PCM at the requested rate.
type Decoder interface {
	DecodePCM(ctx context.Context, path string, sampleRate int) ([]float32, error)
}

// ClipWriter writes PCM samples to a WAV file.
type ClipWriter interface {
	EncodePCM(ctx context.Context, samples []float32, sampleRate int, dest string) error
}

// Recognizer turns an audio file into text with optional timed sub-segments.
type Recognizer interface {
	Recognize(ctx context.Context, audioPath, language string) (whisperx.Transcript, error)
}

// Options holds the settings shared by every job of a batch.
type Options struct {
	SampleRate    int
	Segment       segment.Params
	TempDir       string
	TempRetention time.Duration
	TempMaxBytes  int64
	// Fillers are caption texts kept in the transcript but left out of subtitles.
	Fillers []string
}

// Deps are the collaborators shared by every unit of a batch.
type Deps struct {
	Decoder    Decoder
	ClipWriter ClipWriter
	Recognizer Recognizer
	RunLog     *runlog.Writer
	Logger     *slog.Logger
	Options    Options
	Now        func() time.Time
}

// NewFactory returns a pipeline factory bound to deps.
func NewFactory(deps Deps) pipeline.Factory[Job, *Unit] {
	return func(_ context.Context, job Job) (*Unit, error) {
		if deps.Recognizer == nil {
			return nil, services.Wrap(services.ErrConfiguration, "transcribe", "init", "recognizer not configured", nil)
		}
		if job.Mode == ModeSegmented && (deps.Decoder == nil || deps.ClipWriter == nil) {
			return nil, services.Wrap(services.ErrConfiguration, "transcribe", "init", "segmented mode needs a decoder and clip writer", nil)
		}
		return New(job, deps), nil
	}
}

// Unit is the transcription state machine for one job.
type Unit struct {
	*pipeline.Tracker

	job    Job
	deps   Deps
	logger *slog.Logger
}

// New constructs an idle unit. A blank mode means segmented.
func New(job Job, deps Deps) *Unit {
	if job.Mode == "" {
		job.Mode = ModeSegmented
	}
	if deps.Options.SampleRate <= 0 {
		deps.Options.SampleRate = 16000
	}
	return &Unit{
		Tracker: pipeline.NewTracker(),
		job:     job,
		deps:    deps,
		logger:  logging.NewComponentLogger(deps.Logger, "transcribe"),
	}
}

// Outputs returns the transcript and subtitle paths for job.
func Outputs(job Job) (text, captions string) {
	dir := strings.TrimSpace(job.OutputDir)
	if dir == "" {
		dir = filepath.Dir(job.Path)
	}
	stem := fileutil.Stem(job.Path)
	return filepath.Join(dir, stem+".txt"), filepath.Join(dir, stem+".srt")
}

// Run implements pipeline.Unit.
func (u *Unit) Run(ctx context.Context) {
	logger := logging.WithContext(ctx, u.logger)
	if _, err := os.Stat(u.job.Path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			u.Fail(services.Wrap(services.ErrNotFound, "transcribe", "stat", u.job.Path, err))
			return
		}
		u.Fail(fmt.Errorf("transcribe: stat source: %w", err))
		return
	}

	started := u.now()
	var (
		captions []subtitles.Caption
		err      error
	)
	if u.job.Mode == ModeFull {
		captions, err = u.recognizeFull(ctx)
	} else {
		captions, err = u.recognizeSegmented(ctx, logger)
	}
	if err != nil {
		u.Resolve(err)
		return
	}
	if u.CancelRequested() {
		logger.Info("transcription cancelled before writing")
		u.MarkCancelled()
		return
	}
	elapsed := u.now().Sub(started)

	u.SetPhase(pipeline.PhaseWriting)
	outputs, err := u.write(captions)
	if err != nil {
		u.Fail(err)
		return
	}
	u.writeRunLog(logger, outputs, elapsed)
	logger.Info("transcription complete",
		logging.Int("captions", len(captions)),
		logging.Duration("time_used", elapsed),
	)
	u.Complete(outputs...)
}

func (u *Unit) recognizeFull(ctx context.Context) ([]subtitles.Caption, error) {
	u.SetPhase(pipeline.PhaseRecognizing)
	u.SetEstimated(true)
	transcript, err := u.deps.Recognizer.Recognize(ctx, u.job.Path, u.job.Language)
	if err != nil {
		return nil, err
	}
	rate := float64(u.deps.Options.SampleRate)
	if len(transcript.Segments) == 0 {
		if strings.TrimSpace(transcript.Text) == "" {
			return nil, services.Wrap(services.ErrNoSpeech, "transcribe", "recognize", filepath.Base(u.job.Path), nil)
		}
		// Untimed text still becomes a transcript; it has no subtitle cue.
		return []subtitles.Caption{{Text: strings.TrimSpace(transcript.Text), Start: -1, End: -1}}, nil
	}
	captions := make([]subtitles.Caption, 0, len(transcript.Segments))
	var prevEnd int64
	for _, sub := range transcript.Segments {
		start := max(toSample(sub.Start, rate), prevEnd)
		end := max(toSample(sub.End, rate), start)
		captions = append(captions, subtitles.Caption{Text: strings.TrimSpace(sub.Text), Start: start, End: end})
		prevEnd = end
	}
	u.SetProgress(1)
	return captions, nil
}

func (u *Unit) recognizeSegmented(ctx context.Context, logger *slog.Logger) ([]subtitles.Caption, error) {
	u.SetPhase(pipeline.PhaseSplitting)
	opts := u.deps.Options
	clips, segments, err := u.split(ctx, logger)
	if err != nil {
		return nil, err
	}
	defer u.removeClips(logger, clips)

	u.SetPhase(pipeline.PhaseRecognizing)
	captions := make([]subtitles.Caption, 0, len(segments))
	for i, seg := range segments {
		if u.CancelRequested() {
			return nil, nil
		}
		transcript, err := u.deps.Recognizer.Recognize(ctx, clips[i], u.job.Language)
		if err != nil {
			return nil, err
		}
		captions = append(captions, placeCaptions(transcript, seg, float64(opts.SampleRate))...)
		u.SetProgress(float64(i+1) / float64(len(segments)))
		logger.Debug("clip recognized",
			logging.Int("clip", i+1),
			logging.Int("clips", len(segments)),
			logging.String("text", transcript.Text),
		)
	}
	return captions, nil
}

// split prepares the temp directory, segments the decoded source, and writes
// one clip per segment. Clips are named {stem}{n}.wav starting at 1.
func (u *Unit) split(ctx context.Context, logger *slog.Logger) ([]string, []segment.Segment, error) {
	opts := u.deps.Options
	stem := fileutil.Stem(u.job.Path)
	if err := os.MkdirAll(opts.TempDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("transcribe: create temp dir: %w", err)
	}
	if _, err := fileutil.RemoveMatching(opts.TempDir, escapeGlob(stem)+"*"); err != nil {
		return nil, nil, fmt.Errorf("transcribe: clear stale clips: %w", err)
	}
	if opts.TempRetention > 0 || opts.TempMaxBytes > 0 {
		expired, err := fileutil.Expire(opts.TempDir, opts.TempRetention, opts.TempMaxBytes, u.now())
		if err != nil {
			logger.Warn("temp retention failed", logging.Error(err))
		} else if n := len(expired.Expired) + len(expired.Evicted); n > 0 {
			logger.Info("temp files removed", logging.Int("count", n), logging.Int64("freed_bytes", expired.FreedBytes))
		}
	}

	samples, err := u.deps.Decoder.DecodePCM(ctx, u.job.Path, opts.SampleRate)
	if err != nil {
		return nil, nil, err
	}
	params := opts.Segment
	params.SampleRate = opts.SampleRate
	segments, err := segment.Split(samples, params)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrValidation, "transcribe", "split", "segment parameters", err)
	}
	if len(segments) == 0 {
		return nil, nil, services.Wrap(services.ErrNoSpeech, "transcribe", "split", filepath.Base(u.job.Path), nil)
	}

	clips := make([]string, 0, len(segments))
	for i, seg := range segments {
		clip := filepath.Join(opts.TempDir, stem+strconv.Itoa(i+1)+".wav")
		if err := u.deps.ClipWriter.EncodePCM(ctx, samples[seg.Start:seg.End], opts.SampleRate, clip); err != nil {
			u.removeClips(logger, clips)
			return nil, nil, err
		}
		clips = append(clips, clip)
	}
	logger.Info("audio split",
		logging.Int("clips", len(clips)),
		logging.Int("samples", len(samples)),
		logging.Int("sample_rate", opts.SampleRate),
	)
	return clips, segments, nil
}

// placeCaptions maps one clip's transcript onto the source timeline. A clip
// with several sub-segments is replaced by one caption per sub-segment, each
// kept inside the clip and after its predecessor.
func placeCaptions(transcript whisperx.Transcript, seg segment.Segment, rate float64) []subtitles.Caption {
	clipStart, clipEnd := int64(seg.Start), int64(seg.End)
	if len(transcript.Segments) <= 1 {
		return []subtitles.Caption{{Text: strings.TrimSpace(transcript.Text), Start: clipStart, End: clipEnd}}
	}
	out := make([]subtitles.Caption, 0, len(transcript.Segments))
	prevEnd := clipStart
	for _, sub := range transcript.Segments {
		start := min(max(clipStart+toSample(sub.Start, rate), prevEnd), clipEnd)
		end := min(max(clipStart+toSample(sub.End, rate), start), clipEnd)
		out = append(out, subtitles.Caption{Text: strings.TrimSpace(sub.Text), Start: start, End: end})
		prevEnd = end
	}
	return out
}

func toSample(seconds, rate float64) int64 {
	if seconds <= 0 || math.IsNaN(seconds) {
		return 0
	}
	return int64(math.Round(seconds * rate))
}

func (u *Unit) write(captions []subtitles.Caption) ([]string, error) {
	textPath, srtPath := Outputs(u.job)
	if err := os.MkdirAll(filepath.Dir(textPath), 0o755); err != nil {
		return nil, fmt.Errorf("transcribe: create output dir: %w", err)
	}
	if err := fileutil.WriteFileAtomic(textPath, []byte(subtitles.JoinText(captions))); err != nil {
		return nil, fmt.Errorf("transcribe: write transcript: %w", err)
	}
	outputs := []string{textPath}

	var timed []subtitles.Caption
	for _, c := range captions {
		if c.Start >= 0 {
			timed = append(timed, c)
		}
	}
	cues := subtitles.BuildCues(timed, int64(u.deps.Options.SampleRate), u.deps.Options.Fillers)
	if len(cues) > 0 {
		if err := fileutil.WriteFileAtomic(srtPath, []byte(subtitles.RenderSRT(cues))); err != nil {
			_ = os.Remove(textPath)
			return nil, fmt.Errorf("transcribe: write subtitles: %w", err)
		}
		outputs = append(outputs, srtPath)
	}
	return outputs, nil
}

func (u *Unit) writeRunLog(logger *slog.Logger, outputs []string, elapsed time.Duration) {
	captionPath := "None"
	if len(outputs) > 1 {
		captionPath = outputs[1]
	}
	err := u.deps.RunLog.Write(RunLogTitle,
		"Type: "+u.job.Mode.label(),
		"Source: "+u.job.Path,
		"Destination (Text): "+outputs[0],
		"Destination (Caption): "+captionPath,
		fmt.Sprintf("Time Used: %.2f seconds", elapsed.Seconds()),
	)
	if err != nil {
		logger.Warn("run log write failed", logging.Error(err))
	}
}

func (u *Unit) removeClips(logger *slog.Logger, clips []string) {
	for _, clip := range clips {
		if err := os.Remove(clip); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Debug("clip cleanup failed", logging.String("path", clip), logging.Error(err))
		}
	}
}

func (u *Unit) now() time.Time {
	if u.deps.Now != nil {
		return u.deps.Now()
	}
	return time.Now()
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
