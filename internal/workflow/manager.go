package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"captionizer/internal/config"
	"captionizer/internal/convert"
	"captionizer/internal/logging"
	"captionizer/internal/notifications"
	"captionizer/internal/pipeline"
	"captionizer/internal/preflight"
	"captionizer/internal/runlog"
	"captionizer/internal/segment"
	"captionizer/internal/services"
	"captionizer/internal/transcribe"
	"captionizer/internal/translate"
)

// Workflow names.
const (
	Convert    = preflight.WorkflowConvert
	Transcribe = preflight.WorkflowTranscribe
	Translate  = preflight.WorkflowTranslate
)

// ErrLocked is returned when another process holds the workflow lock.
var ErrLocked = errors.New("workflow is locked by another captionizer process")

// Recorder persists batch history. *history.Store satisfies it.
type Recorder interface {
	BeginBatch(ctx context.Context, id, workflow string, total int, startedAt time.Time) error
	RecordJob(ctx context.Context, report pipeline.JobReport) error
	FinishBatch(ctx context.Context, result pipeline.BatchResult) error
}

// PreflightFunc validates the environment before a batch of workflow starts.
type PreflightFunc func(ctx context.Context, workflow string) error

// Option configures a Manager.
type Option func(*Manager)

// WithRecorder records every batch and job.
func WithRecorder(recorder Recorder) Option {
	return func(m *Manager) {
		m.recorder = recorder
	}
}

// WithNotifier overrides the notification service built from config.
func WithNotifier(notifier notifications.Service) Option {
	return func(m *Manager) {
		if notifier != nil {
			m.notifier = notifier
		}
	}
}

// WithCapabilities overrides individual capabilities; unset fields keep the
// production implementations.
func WithCapabilities(caps Capabilities) Option {
	return func(m *Manager) {
		m.caps = caps
	}
}

// WithPreflight replaces the preflight gate. A nil func disables it.
func WithPreflight(fn PreflightFunc) Option {
	return func(m *Manager) {
		m.preflight = fn
	}
}

// WithSupervisorOptions appends options to every supervisor.
func WithSupervisorOptions(opts ...pipeline.Option) Option {
	return func(m *Manager) {
		m.supOpts = append(m.supOpts, opts...)
	}
}

// Manager starts batches for the three workflows.
type Manager struct {
	cfg       *config.Config
	logger    *slog.Logger
	recorder  Recorder
	notifier  notifications.Service
	caps      Capabilities
	preflight PreflightFunc
	supOpts   []pipeline.Option
	runLog    *runlog.Writer
	lockDir   string

	mu         sync.Mutex
	convert    *lane[convert.Job, *convert.Unit]
	transcribe *lane[transcribe.Job, *transcribe.Unit]
	translate  *lane[translate.Job, *translate.Unit]
}

// NewManager builds a manager from cfg.
func NewManager(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("workflow manager requires config")
	}
	m := &Manager{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "workflow-manager"),
		notifier:  notifications.NewService(cfg),
		preflight: configPreflight(cfg),
		runLog:    runlog.New(cfg.Paths.LogDir),
		lockDir:   cfg.Paths.LogDir,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.caps = m.caps.merge(CapabilitiesFromConfig(cfg))

	base := []pipeline.Option{
		pipeline.WithTick(cfg.PollInterval()),
		pipeline.WithPopTimeout(cfg.DequeueTimeout()),
		pipeline.WithQueueCapacity(cfg.Workflow.QueueCapacity),
	}
	supOpts := func(name string) []pipeline.Option {
		opts := append([]pipeline.Option{}, base...)
		opts = append(opts, pipeline.WithLogger(logging.ForWorkflow(logger, cfg, name)))
		return append(opts, m.supOpts...)
	}

	m.convert = newLane(Convert, convert.NewFactory(convert.Deps{
		Prober:    m.caps.Prober,
		Converter: m.caps.Converter,
		RunLog:    m.runLog,
		Logger:    logging.ForWorkflow(logger, cfg, Convert),
		Options: convert.Options{
			AudioExtensions: cfg.Conversion.AudioExtensions,
			VideoExtensions: cfg.Conversion.VideoExtensions,
			SampleRate:      cfg.Conversion.SampleRate,
		},
	}), supOpts(Convert)...)

	m.transcribe = newLane(Transcribe, transcribe.NewFactory(transcribe.Deps{
		Decoder:    m.caps.Decoder,
		ClipWriter: m.caps.ClipWriter,
		Recognizer: m.caps.Recognizer,
		RunLog:     m.runLog,
		Logger:     logging.ForWorkflow(logger, cfg, Transcribe),
		Options: transcribe.Options{
			SampleRate: cfg.Transcription.SampleRate,
			Segment: segment.Params{
				SampleRate:  cfg.Transcription.SampleRate,
				ThresholdDB: cfg.Transcription.SilenceThresholdDB,
				FrameLength: cfg.Transcription.FrameLength,
				HopLength:   cfg.Transcription.HopLength,
			},
			TempDir:       cfg.Paths.TempDir,
			TempRetention: cfg.TempRetention(),
			TempMaxBytes:  cfg.TempMaxBytes(),
			Fillers:       cfg.Transcription.FillerCaptions,
		},
	}), supOpts(Transcribe)...)

	m.translate = newLane(Translate, translate.NewFactory(translate.Deps{
		Translator: m.caps.Translator,
		RunLog:     m.runLog,
		Logger:     logging.ForWorkflow(logger, cfg, Translate),
	}), supOpts(Translate)...)

	return m, nil
}

// StartConvert starts a conversion batch.
func (m *Manager) StartConvert(ctx context.Context, jobs []convert.Job, events pipeline.Events) (*pipeline.Handle[convert.Job], error) {
	return start(ctx, m, m.convert, jobs, events)
}

// StartTranscribe starts a transcription batch.
func (m *Manager) StartTranscribe(ctx context.Context, jobs []transcribe.Job, events pipeline.Events) (*pipeline.Handle[transcribe.Job], error) {
	return start(ctx, m, m.transcribe, jobs, events)
}

// StartTranslate starts a translation batch.
func (m *Manager) StartTranslate(ctx context.Context, jobs []translate.Job, events pipeline.Events) (*pipeline.Handle[translate.Job], error) {
	return start(ctx, m, m.translate, jobs, events)
}

// Busy reports whether the named workflow has a batch in flight in this process.
func (m *Manager) Busy(workflow string) bool {
	switch workflow {
	case Convert:
		return m.convert.sup.Running()
	case Transcribe:
		return m.transcribe.sup.Running()
	case Translate:
		return m.translate.sup.Running()
	}
	return false
}

// LockPath returns the lock file guarding workflow.
func (m *Manager) LockPath(workflow string) string {
	return filepath.Join(m.lockDir, "captionizer-"+workflow+".lock")
}

func start[J pipeline.Job, U pipeline.Unit](ctx context.Context, m *Manager, l *lane[J, U], jobs []J, events pipeline.Events) (*pipeline.Handle[J], error) {
	if len(jobs) == 0 {
		return nil, pipeline.ErrNoJobs
	}
	if capacity := m.cfg.Workflow.QueueCapacity; capacity > 0 && len(jobs) > capacity {
		return nil, services.Wrap(services.ErrValidation, l.name, "enqueue",
			fmt.Sprintf("%d files exceed the queue capacity of %d", len(jobs), capacity), nil)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if l.sup.Running() {
		return nil, pipeline.ErrBusy
	}
	if m.preflight != nil {
		if err := m.preflight(ctx, l.name); err != nil {
			return nil, err
		}
	}

	lock, err := m.acquire(l.name)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	logger := logging.WithContext(services.WithBatchID(services.WithWorkflow(ctx, l.name), id), m.logger)
	background := context.WithoutCancel(ctx)
	if m.recorder != nil {
		if err := m.recorder.BeginBatch(background, id, l.name, len(jobs), time.Now()); err != nil {
			logging.WarnWithContext(logger, "batch history unavailable", "history_begin_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check history_path permissions"),
				logging.String(logging.FieldImpact, "batch will not appear in history"),
			)
		}
	}

	l.relay.set(id, m.batchEvents(background, logger, l.name, lock, events))
	h, err := l.sup.Start(ctx, jobs)
	if err != nil {
		if unlockErr := lock.Unlock(); unlockErr != nil {
			logger.Debug("release workflow lock failed", logging.Error(unlockErr))
		}
		if m.recorder != nil {
			now := time.Now()
			_ = m.recorder.FinishBatch(background, pipeline.BatchResult{ID: id, Workflow: l.name, Err: err, StartedAt: now, FinishedAt: now})
		}
		return nil, err
	}
	logger.Info("batch queued",
		logging.String(logging.FieldEventType, "batch_queued"),
		logging.Int("jobs", len(jobs)),
		logging.String("lock", lock.Path()),
	)
	return h, nil
}

func (m *Manager) acquire(workflow string) (*flock.Flock, error) {
	if err := os.MkdirAll(m.lockDir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	lock := flock.New(m.LockPath(workflow))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire %s lock: %w", workflow, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", workflow, ErrLocked)
	}
	return lock, nil
}

// configPreflight runs the directory and LLM checks that apply to workflow.
func configPreflight(cfg *config.Config) PreflightFunc {
	return func(ctx context.Context, workflow string) error {
		failed := preflight.Failed(preflight.RunAll(ctx, cfg, workflow))
		if len(failed) == 0 {
			return nil
		}
		details := make([]string, 0, len(failed))
		for _, r := range failed {
			details = append(details, r.Name+": "+r.Detail)
		}
		return services.Wrap(services.ErrConfiguration, workflow, "preflight", strings.Join(details, "; "), nil)
	}
}
