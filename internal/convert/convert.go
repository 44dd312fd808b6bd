package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"captionizer/internal/fileutil"
	"captionizer/internal/logging"
	"captionizer/internal/media/ffprobe"
	"captionizer/internal/pipeline"
	"captionizer/internal/runlog"
	"captionizer/internal/services"
	"captionizer/internal/services/ffmpeg"
)

// CanonicalExt is the extension of every conversion output.
const CanonicalExt = "wav"

// CanonicalCodec is the sample format ffmpeg writes into the output WAV.
const CanonicalCodec = "pcm_s16le"

// RunLogTitle heads each conversion block in the run log.
const RunLogTitle = "File Import"

// Job converts Path into DestDir. An empty DestDir writes beside the source.
type Job struct {
	Path    string
	DestDir string
}

// Source implements pipeline.Job.
func (j Job) Source() string { return j.Path }

// Prober inspects media streams.
type Prober interface {
	Inspect(ctx context.Context, path string) (ffprobe.Result, error)
}

// Converter produces the canonical WAV.
type Converter interface {
	ToWAV(ctx context.Context, src, dest string, opts ffmpeg.ConvertOptions) error
}

// Options configures which extensions are accepted.
type Options struct {
	AudioExtensions []string
	VideoExtensions []string
	// SampleRate forces the output rate; zero keeps the source rate.
	SampleRate int
}

// Deps are the collaborators shared by every unit of a batch.
type Deps struct {
	Prober    Prober
	Converter Converter
	RunLog    *runlog.Writer
	Logger    *slog.Logger
	Options   Options
}

// NewFactory returns a pipeline factory bound to deps.
func NewFactory(deps Deps) pipeline.Factory[Job, *Unit] {
	return func(_ context.Context, job Job) (*Unit, error) {
		if deps.Converter == nil {
			return nil, services.Wrap(services.ErrConfiguration, "convert", "init", "converter not configured", nil)
		}
		return New(job, deps), nil
	}
}

// Unit is the conversion state machine for one job.
type Unit struct {
	*pipeline.Tracker

	job    Job
	deps   Deps
	logger *slog.Logger
}

// New constructs an idle unit.
func New(job Job, deps Deps) *Unit {
	return &Unit{
		Tracker: pipeline.NewTracker(),
		job:     job,
		deps:    deps,
		logger:  logging.NewComponentLogger(deps.Logger, "convert"),
	}
}

// OutputPath returns where the canonical file for job lands.
func OutputPath(job Job) string {
	dir := strings.TrimSpace(job.DestDir)
	if dir == "" {
		dir = filepath.Dir(job.Path)
	}
	return filepath.Join(dir, fileutil.Stem(job.Path)+"."+CanonicalExt)
}

// Run implements pipeline.Unit.
func (u *Unit) Run(ctx context.Context) {
	logger := logging.WithContext(ctx, u.logger)
	u.SetPhase(pipeline.PhaseConverting)

	output, err := u.convert(ctx)
	if err != nil {
		u.Resolve(err)
		return
	}
	if u.CancelRequested() {
		if output != u.job.Path {
			if rmErr := os.Remove(output); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				logger.Warn("discard cancelled output failed", logging.String("path", output), logging.Error(rmErr))
			}
		}
		u.MarkCancelled()
		return
	}

	u.SetPhase(pipeline.PhaseWriting)
	lines := []string{"Source: " + u.job.Path, "Output: " + output}
	if output == u.job.Path {
		lines = append(lines, "No Conversion!")
	}
	if err := u.deps.RunLog.Write(RunLogTitle, lines...); err != nil {
		logger.Warn("run log write failed", logging.Error(err))
	}
	logger.Info("file converted", logging.String("output", output))
	u.Complete(output)
}

func (u *Unit) convert(ctx context.Context) (string, error) {
	if _, err := os.Stat(u.job.Path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", services.Wrap(services.ErrNotFound, "convert", "stat", u.job.Path, err)
		}
		return "", fmt.Errorf("convert: stat source: %w", err)
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(u.job.Path), "."))
	opts := u.deps.Options
	switch {
	case ext == CanonicalExt:
		return u.convertWAV(ctx)
	case containsExt(opts.AudioExtensions, ext):
		u.SetEstimated(true)
		dest := OutputPath(u.job)
		err := u.deps.Converter.ToWAV(ctx, u.job.Path, dest, ffmpeg.ConvertOptions{SampleRate: opts.SampleRate})
		return dest, err
	case containsExt(opts.VideoExtensions, ext):
		return u.extractVideoAudio(ctx)
	default:
		return "", services.Wrap(services.ErrUnsupportedFormat, "convert", "dispatch", "."+ext, nil)
	}
}

// convertWAV passes a WAV through when it already holds canonical PCM at the
// configured rate. ADPCM, float, compressed payloads, and other rates are
// re-encoded.
func (u *Unit) convertWAV(ctx context.Context) (string, error) {
	probe, err := u.probe(ctx)
	if err != nil {
		return "", err
	}
	if isCanonical(probe, u.deps.Options.SampleRate) {
		return u.job.Path, nil
	}
	dest := OutputPath(u.job)
	if strings.EqualFold(filepath.Clean(dest), filepath.Clean(u.job.Path)) {
		dest = fileutil.SuffixedName(filepath.Dir(dest), u.job.Path, "pcm", CanonicalExt)
	}
	return dest, u.measuredConvert(ctx, probe, dest)
}

func (u *Unit) extractVideoAudio(ctx context.Context) (string, error) {
	probe, err := u.probe(ctx)
	if err != nil {
		return "", err
	}
	dest := OutputPath(u.job)
	return dest, u.measuredConvert(ctx, probe, dest)
}

// probe inspects the source and rejects files without an audio stream.
func (u *Unit) probe(ctx context.Context) (ffprobe.Result, error) {
	if u.deps.Prober == nil {
		return ffprobe.Result{}, services.Wrap(services.ErrConfiguration, "convert", "probe", "prober not configured", nil)
	}
	probe, err := u.deps.Prober.Inspect(ctx, u.job.Path)
	if err != nil {
		return ffprobe.Result{}, err
	}
	if !probe.HasAudio() {
		return ffprobe.Result{}, services.Wrap(services.ErrNoAudioTrack, "convert", "probe", filepath.Base(u.job.Path), nil)
	}
	return probe, nil
}

func (u *Unit) measuredConvert(ctx context.Context, probe ffprobe.Result, dest string) error {
	return u.deps.Converter.ToWAV(ctx, u.job.Path, dest, ffmpeg.ConvertOptions{
		SampleRate: u.deps.Options.SampleRate,
		Duration:   time.Duration(probe.DurationSeconds() * float64(time.Second)),
		OnProgress: u.SetProgress,
	})
}

func isCanonical(probe ffprobe.Result, sampleRate int) bool {
	if !probe.IsPCMWAV() {
		return false
	}
	stream, _ := probe.PrimaryAudio()
	if !strings.EqualFold(stream.CodecName, CanonicalCodec) {
		return false
	}
	return sampleRate <= 0 || stream.SampleRateHz() == sampleRate
}

func containsExt(list []string, ext string) bool {
	for _, candidate := range list {
		if strings.EqualFold(strings.TrimPrefix(candidate, "."), ext) {
			return true
		}
	}
	return false
}
