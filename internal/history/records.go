package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"captionizer/internal/pipeline"
)

// Batch statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusPartial   = "partial"
	StatusHalted    = "halted"
	StatusCancelled = "cancelled"
)

// Batch is one stored supervisor run.
type Batch struct {
	ID         string
	Workflow   string
	Status     string
	Total      int
	Completed  int
	Skipped    int
	Cancelled  int
	Artifacts  int
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration is the wall time of a finished batch.
func (b Batch) Duration() time.Duration {
	if b.FinishedAt.IsZero() {
		return 0
	}
	return b.FinishedAt.Sub(b.StartedAt)
}

// Job is one stored job outcome.
type Job struct {
	Index      int
	Source     string
	RequestID  string
	Outcome    string
	ErrorKind  string
	Error      string
	Outputs    []string
	StartedAt  time.Time
	FinishedAt time.Time
}

// BeginBatch records a batch before its first job starts.
func (s *Store) BeginBatch(ctx context.Context, id, workflow string, total int, startedAt time.Time) error {
	_, err := s.execWithRetry(ctx,
		`INSERT INTO batches (id, workflow, status, total, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, workflow, StatusRunning, total, formatTime(startedAt),
	)
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

// RecordJob stores the outcome of one job.
func (s *Store) RecordJob(ctx context.Context, report pipeline.JobReport) error {
	outputs, err := json.Marshal(nonNil(report.Outputs))
	if err != nil {
		return fmt.Errorf("encode outputs: %w", err)
	}
	var errMsg, kind any
	if report.Err != nil {
		errMsg = report.Err.Error()
		kind = string(report.Kind)
	}
	_, err = s.execWithRetry(ctx,
		`INSERT INTO jobs (batch_id, job_index, source, request_id, outcome, error_kind, error_message, outputs, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.BatchID, report.Index, report.Source, report.RequestID, report.Outcome(),
		kind, errMsg, string(outputs), formatTime(report.StartedAt), formatTime(report.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// FinishBatch stores the final counts and status of a batch.
func (s *Store) FinishBatch(ctx context.Context, result pipeline.BatchResult) error {
	var errMsg any
	if result.Err != nil {
		errMsg = result.Err.Error()
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE batches SET status = ?, total = ?, completed = ?, skipped = ?, cancelled = ?, artifacts = ?, error_message = ?, finished_at = ?
		 WHERE id = ?`,
		batchStatus(result), result.Total(), len(result.Sources), len(result.Skipped), len(result.Cancelled),
		len(result.Artifacts), errMsg, formatTime(result.FinishedAt), result.ID,
	)
	if err != nil {
		return fmt.Errorf("update batch: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish batch %s: %w", result.ID, ErrNotFound)
	}
	return nil
}

func batchStatus(result pipeline.BatchResult) string {
	switch {
	case result.WasCancelled():
		return StatusCancelled
	case result.Halted():
		return StatusHalted
	case len(result.Skipped) > 0:
		return StatusPartial
	default:
		return StatusCompleted
	}
}

const batchColumns = `id, workflow, status, total, completed, skipped, cancelled, artifacts, error_message, started_at, finished_at`

// ListBatches returns the most recent batches first. limit <= 0 returns all.
func (s *Store) ListBatches(ctx context.Context, limit int) ([]Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// GetBatch returns one batch and its jobs in index order.
func (s *Store) GetBatch(ctx context.Context, id string) (Batch, []Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+batchColumns+` FROM batches WHERE id = ?`, id)
	batch, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Batch{}, nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Batch{}, nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT job_index, source, request_id, outcome, error_kind, error_message, outputs, started_at, finished_at
		 FROM jobs WHERE batch_id = ? ORDER BY job_index, id`, id)
	if err != nil {
		return Batch{}, nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var (
			job                                  Job
			requestID, kind, errMsg, start, done sql.NullString
			outputs                              string
		)
		if err := rows.Scan(&job.Index, &job.Source, &requestID, &job.Outcome, &kind, &errMsg, &outputs, &start, &done); err != nil {
			return Batch{}, nil, fmt.Errorf("scan job: %w", err)
		}
		job.RequestID = requestID.String
		job.ErrorKind = kind.String
		job.Error = errMsg.String
		job.StartedAt = parseTime(start)
		job.FinishedAt = parseTime(done)
		if err := json.Unmarshal([]byte(outputs), &job.Outputs); err != nil {
			return Batch{}, nil, fmt.Errorf("decode outputs: %w", err)
		}
		jobs = append(jobs, job)
	}
	return batch, jobs, rows.Err()
}

// Clear removes every batch and job.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM batches`)
	if err != nil {
		return 0, fmt.Errorf("clear history: %w", err)
	}
	return res.RowsAffected()
}

// Prune removes finished batches that started before cutoff.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`DELETE FROM batches WHERE status != ? AND started_at < ?`, StatusRunning, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBatch(row scanner) (Batch, error) {
	var (
		b                     Batch
		errMsg, start, finish sql.NullString
	)
	if err := row.Scan(&b.ID, &b.Workflow, &b.Status, &b.Total, &b.Completed, &b.Skipped, &b.Cancelled, &b.Artifacts, &errMsg, &start, &finish); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Batch{}, err
		}
		return Batch{}, fmt.Errorf("scan batch: %w", err)
	}
	b.Error = errMsg.String
	b.StartedAt = parseTime(start)
	b.FinishedAt = parseTime(finish)
	return b, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
