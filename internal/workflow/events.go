package workflow

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofrs/flock"

	"captionizer/internal/logging"
	"captionizer/internal/pipeline"
	"captionizer/internal/services"
)

// batchEvents builds the receivers for one batch: history, notifications,
// the caller's events, and the lock release once the batch unlocks.
// ctx is detached from the caller so the final records survive a cancel.
func (m *Manager) batchEvents(ctx context.Context, logger *slog.Logger, workflow string, lock *flock.Flock, caller pipeline.Events) pipeline.Events {
	events := pipeline.MultiEvents{m.historyEvents(ctx, logger), m.notifyEvents(ctx, logger, workflow)}
	if caller != nil {
		events = append(events, caller)
	}
	events = append(events, pipeline.EventFuncs{
		Locked: func(locked bool) {
			if locked {
				return
			}
			if err := lock.Unlock(); err != nil {
				logging.WarnWithContext(logger, "release workflow lock failed", "lock_release_failed",
					logging.Error(err),
					logging.String("lock", lock.Path()),
					logging.String(logging.FieldErrorHint, "remove the stale lock file if no captionizer process is running"),
				)
			}
		},
	})
	return events
}

func (m *Manager) historyEvents(ctx context.Context, logger *slog.Logger) pipeline.Events {
	if m.recorder == nil {
		return nil
	}
	warn := func(msg, eventType string, err error) {
		logging.WarnWithContext(logger, msg, eventType,
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check history_path permissions"),
			logging.String(logging.FieldImpact, "history will be incomplete"),
		)
	}
	return pipeline.EventFuncs{
		JobFinished: func(report pipeline.JobReport) {
			if err := m.recorder.RecordJob(ctx, report); err != nil {
				warn("record job failed", "history_job_failed", err)
			}
		},
		Finished: func(result pipeline.BatchResult) {
			if err := m.recorder.FinishBatch(ctx, result); err != nil {
				warn("record batch failed", "history_batch_failed", err)
			}
		},
	}
}

func (m *Manager) notifyEvents(ctx context.Context, logger *slog.Logger, workflow string) pipeline.Events {
	report := func(kind string, err error) {
		if err == nil {
			return
		}
		if errors.Is(err, context.Canceled) {
			logger.Debug("notification skipped during shutdown", logging.String("notification", kind))
			return
		}
		logger.Debug("notification failed", logging.String("notification", kind), logging.Error(err))
	}
	return pipeline.EventFuncs{
		ItemError: func(source string, err error) {
			// Jobs drained after a halt are covered by the batch summary.
			if services.Classify(err) == services.KindNotProcessed {
				return
			}
			report("item_error", m.notifier.NotifyItemError(ctx, workflow, source, err))
		},
		Finished: func(result pipeline.BatchResult) {
			report("batch_finished", m.notifier.NotifyBatchFinished(ctx, result))
		},
	}
}
