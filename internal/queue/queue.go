// Package queue provides a serialized task queue for asynchronous
// remote operations. Tasks for one queue run strictly in submission
// order, so a newer remote write can never be overtaken by an older one.
package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// ErrClosed is returned when submitting to a closed queue.
var ErrClosed = errors.New("queue: closed")

// DefaultBuffer is the default task buffer size. Submission blocks when
// the buffer is full, which bounds memory under a slow remote tier.
const DefaultBuffer = 16

// Task is one unit of asynchronous work. Errors are logged by the
// queue, never propagated to the submitter.
type Task func(ctx context.Context) error

type job struct {
	name string
	run  Task
	done chan struct{} // non-nil for flush markers
}

// Queue runs tasks one at a time on a background goroutine.
type Queue struct {
	tasks   chan job
	stopped chan struct{}
	logger  *zap.Logger
	pending atomic.Int64

	mu     sync.Mutex
	closed bool
}

// New creates a queue and starts its worker. If logger is nil, a no-op
// logger is used.
func New(buffer int, logger *zap.Logger) *Queue {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	q := &Queue{
		tasks:   make(chan job, buffer),
		stopped: make(chan struct{}),
		logger:  logger,
	}
	go q.run()
	return q
}

func (q *Queue) run() {
	defer close(q.stopped)
	for j := range q.tasks {
		if j.run != nil {
			if err := j.run(context.Background()); err != nil {
				q.logger.Warn("async task failed",
					zap.String("task", j.name),
					zap.Error(err),
				)
			}
			q.pending.Add(-1)
		}
		if j.done != nil {
			close(j.done)
		}
	}
}

// Submit enqueues a task. It blocks while the buffer is full and
// returns ErrClosed after Close.
func (q *Queue) Submit(name string, t Task) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.pending.Add(1)
	q.tasks <- job{name: name, run: t}
	q.mu.Unlock()
	return nil
}

// Pending returns the number of submitted tasks not yet finished.
func (q *Queue) Pending() int {
	return int(q.pending.Load())
}

// Flush blocks until every task submitted before the call has finished,
// or until ctx is done.
func (q *Queue) Flush(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		// Close already drained the queue.
		return nil
	}
	marker := job{done: make(chan struct{})}
	q.tasks <- marker
	q.mu.Unlock()

	select {
	case <-marker.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting tasks and waits for in-flight tasks to finish,
// bounded by ctx. If ctx expires first, the remaining tasks are
// abandoned and a warning is logged; Close is still final.
func (q *Queue) Close(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()

	select {
	case <-q.stopped:
		return nil
	case <-ctx.Done():
		q.logger.Warn("abandoning pending async tasks",
			zap.Int("pending", q.Pending()),
			zap.Error(ctx.Err()),
		)
		return ctx.Err()
	}
}
