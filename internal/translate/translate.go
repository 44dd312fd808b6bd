package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"captionizer/internal/fileutil"
	"captionizer/internal/language"
	"captionizer/internal/logging"
	"captionizer/internal/pipeline"
	"captionizer/internal/runlog"
	"captionizer/internal/services"
	"captionizer/internal/subtitles"
)

// RunLogTitle heads each translation block in the run log.
const RunLogTitle = "Translation"

// Job translates Path from SourceLanguage into TargetLanguage. An empty
// OutputDir writes beside the source.
type Job struct {
	Path           string
	OutputDir      string
	SourceLanguage string
	TargetLanguage string
}

// Source implements pipeline.Job.
func (j Job) Source() string { return j.Path }

// Deps are the collaborators shared by every unit of a batch.
type Deps struct {
	Translator Translator
	RunLog     *runlog.Writer
	Logger     *slog.Logger
}

// NewFactory returns a pipeline factory bound to deps. Jobs with an unknown
// language are rejected before they start.
func NewFactory(deps Deps) pipeline.Factory[Job, *Unit] {
	return func(_ context.Context, job Job) (*Unit, error) {
		if deps.Translator == nil {
			return nil, services.Wrap(services.ErrConfiguration, "translate", "init", "translator not configured", nil)
		}
		if _, _, err := resolveLanguages(job); err != nil {
			return nil, err
		}
		return New(job, deps), nil
	}
}

type fileKind int

const (
	kindPlain fileKind = iota
	kindSubtitle
)

func detectKind(path string) (fileKind, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt":
		return kindPlain, nil
	case ".srt":
		return kindSubtitle, nil
	default:
		return 0, services.Wrap(services.ErrUnsupportedFormat, "translate", "dispatch", filepath.Ext(path), nil)
	}
}

func resolveLanguages(job Job) (source, target language.Language, err error) {
	source = language.Language{Code: "auto", Name: "Auto"}
	if strings.TrimSpace(job.SourceLanguage) != "" {
		var ok bool
		if source, ok = language.Lookup(job.SourceLanguage); !ok {
			return source, target, services.Wrap(services.ErrValidation, "translate", "language", fmt.Sprintf("unknown source language %q", job.SourceLanguage), nil)
		}
	}
	target, ok := language.Lookup(job.TargetLanguage)
	if !ok || target.IsAuto() {
		return source, target, services.Wrap(services.ErrValidation, "translate", "language", fmt.Sprintf("invalid target language %q", job.TargetLanguage), nil)
	}
	return source, target, nil
}

// OutputPath returns "{dir}/{stem}_{Target}.{ext}" for job.
func OutputPath(job Job, target language.Language) string {
	dir := strings.TrimSpace(job.OutputDir)
	if dir == "" {
		dir = filepath.Dir(job.Path)
	}
	return fileutil.SuffixedName(dir, job.Path, target.Suffix(), filepath.Ext(job.Path))
}

// Unit is the translation state machine for one job.
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
		logger:  logging.NewComponentLogger(deps.Logger, "translate"),
	}
}

// Run implements pipeline.Unit.
func (u *Unit) Run(ctx context.Context) {
	logger := logging.WithContext(ctx, u.logger)
	u.SetPhase(pipeline.PhaseReading)

	kind, err := detectKind(u.job.Path)
	if err != nil {
		u.Fail(err)
		return
	}
	source, target, err := resolveLanguages(u.job)
	if err != nil {
		u.Fail(err)
		return
	}
	data, err := os.ReadFile(u.job.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			u.Fail(services.Wrap(services.ErrNotFound, "translate", "read", u.job.Path, err))
			return
		}
		u.Fail(fmt.Errorf("translate: read source: %w", err))
		return
	}
	if len(data) == 0 {
		logger.Info("source is empty, nothing to translate")
		u.Complete()
		return
	}

	u.SetPhase(pipeline.PhaseTranslating)
	lines := strings.Split(string(data), "\n")
	translated, err := u.translateLines(ctx, lines, kind, source, target)
	if err != nil {
		u.Resolve(err)
		return
	}
	if translated == nil {
		logger.Info("translation cancelled", logging.Int("lines", len(lines)))
		u.MarkCancelled()
		return
	}

	u.SetPhase(pipeline.PhaseWriting)
	content := strings.Join(translated, "\n")
	if strings.TrimSpace(content) == "" {
		u.Complete()
		return
	}
	output := OutputPath(u.job, target)
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		u.Fail(fmt.Errorf("translate: create output dir: %w", err))
		return
	}
	if err := fileutil.WriteFileAtomic(output, []byte(content)); err != nil {
		u.Fail(fmt.Errorf("translate: write output: %w", err))
		return
	}
	if err := u.deps.RunLog.Write(RunLogTitle,
		"Source: "+u.job.Path,
		"Output: "+output,
		"Source Language: "+source.Code,
		"Language: "+target.Code,
	); err != nil {
		logger.Warn("run log write failed", logging.Error(err))
	}
	logger.Info("translation complete",
		logging.String("output", output),
		logging.Int("lines", len(lines)),
		logging.String("target", target.Code),
	)
	u.Complete(output)
}

// translateLines returns nil without error when cancelled mid-file.
func (u *Unit) translateLines(ctx context.Context, lines []string, kind fileKind, source, target language.Language) ([]string, error) {
	sourceName := source.Name
	if source.IsAuto() {
		sourceName = "auto"
	}
	classifier := subtitles.NewClassifier()
	out := make([]string, 0, len(lines))
	for i, line := range lines {
		if u.CancelRequested() {
			return nil, nil
		}
		translate := strings.TrimSpace(line) != ""
		if kind == kindSubtitle {
			translate = classifier.Next(line) == subtitles.LineText
		}
		if translate {
			body, cr := strings.CutSuffix(line, "\r")
			result, err := u.deps.Translator.Translate(ctx, body, sourceName, target.Name)
			if err != nil {
				return nil, err
			}
			line = result
			if cr {
				line += "\r"
			}
		}
		out = append(out, line)
		u.SetProgress(float64(i+1) / float64(len(lines)))
	}
	return out, nil
}
