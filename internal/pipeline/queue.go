package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	// ErrQueueFull is returned when a push would exceed the queue capacity.
	ErrQueueFull = errors.New("job queue full")
	// ErrQueueClosed is returned when pushing to a queue whose batch has ended.
	ErrQueueClosed = errors.New("job queue closed")
)

// JobQueue is a bounded FIFO of jobs waiting for a supervisor.
type JobQueue[J any] struct {
	mu       sync.Mutex
	items    []J
	capacity int
	pushed   int
	done     int
	closed   bool
	signal   chan struct{}
}

// NewJobQueue returns a queue holding at most capacity waiting jobs.
// A non-positive capacity means unbounded.
func NewJobQueue[J any](capacity int) *JobQueue[J] {
	return &JobQueue[J]{
		capacity: capacity,
		signal:   make(chan struct{}, 1),
	}
}

// Push appends a job to the tail of the queue.
func (q *JobQueue[J]) Push(job J) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	if q.capacity > 0 && len(q.items) >= q.capacity {
		q.mu.Unlock()
		return ErrQueueFull
	}
	q.items = append(q.items, job)
	q.pushed++
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return nil
}

// Pop removes the head of the queue, waiting up to timeout for a job to
// arrive. It returns false when the timeout elapses, the context ends, or the
// queue is closed and empty.
func (q *JobQueue[J]) Pop(ctx context.Context, timeout time.Duration) (J, bool) {
	var zero J
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			job := q.items[0]
			q.items[0] = zero
			q.items = q.items[1:]
			q.mu.Unlock()
			return job, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return zero, false
		}

		select {
		case <-ctx.Done():
			return zero, false
		case <-timer.C:
			return zero, false
		case <-q.signal:
		}
	}
}

// Done marks one popped job as finished.
func (q *JobQueue[J]) Done() {
	q.mu.Lock()
	if q.done < q.pushed {
		q.done++
	}
	q.mu.Unlock()
}

// Pending reports jobs pushed but not yet marked done, including the one in flight.
func (q *JobQueue[J]) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pushed - q.done
}

// Len reports jobs still waiting to be popped.
func (q *JobQueue[J]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Total reports every job ever pushed.
func (q *JobQueue[J]) Total() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pushed
}

// CloseIfEmpty closes the queue when no jobs are waiting. It reports whether
// the queue is closed afterwards.
func (q *JobQueue[J]) CloseIfEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		q.closed = true
	}
	return q.closed
}

// Drain closes the queue and returns the jobs that were never popped.
func (q *JobQueue[J]) Drain() []J {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	rest := q.items
	q.items = nil
	return rest
}
