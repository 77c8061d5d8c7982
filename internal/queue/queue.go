// Package queue provides the in-memory FIFO of pending transcription jobs.
//
// The queue suppresses duplicates: a path that is already pending or handed
// to a worker cannot be enqueued again until the worker reports completion,
// even when the file's fingerprint changed in the meantime. Durable state
// lives in the catalog; the queue only orders work within a single process
// lifetime.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"scribe/internal/catalog"
)

var (
	// ErrDuplicateJob reports that a job for the same path is already
	// pending or in flight.
	ErrDuplicateJob = errors.New("duplicate job")
	// ErrClosed reports that the queue has shut down.
	ErrClosed = errors.New("queue closed")
)

// Job is one unit of transcription work.
type Job struct {
	ID          string
	Path        string
	Fingerprint catalog.Fingerprint
	Source      catalog.Source
	EnqueuedAt  time.Time
}

// Queue is a bounded FIFO with duplicate suppression. Enqueue blocks when
// the queue is full; Dequeue blocks when it is empty. Both honor context
// cancellation and queue shutdown.
type Queue struct {
	jobs     chan Job
	quit     chan struct{}
	quitOnce sync.Once
	members  *memberSet
}

// New returns a queue holding at most capacity pending jobs.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{
		jobs:    make(chan Job, capacity),
		quit:    make(chan struct{}),
		members: newMemberSet(),
	}
}

// Enqueue appends a job for the given path and fingerprint. It returns
// ErrDuplicateJob when a job for the path is pending or in flight, and
// blocks when the queue is at capacity.
func (q *Queue) Enqueue(ctx context.Context, path string, fp catalog.Fingerprint, source catalog.Source) (Job, error) {
	select {
	case <-q.quit:
		return Job{}, ErrClosed
	default:
	}

	if !q.members.add(path) {
		return Job{}, ErrDuplicateJob
	}

	job := Job{
		ID:          uuid.NewString(),
		Path:        path,
		Fingerprint: fp,
		Source:      source,
		EnqueuedAt:  time.Now(),
	}
	select {
	case q.jobs <- job:
		return job, nil
	case <-ctx.Done():
		q.members.remove(path)
		return Job{}, ctx.Err()
	case <-q.quit:
		q.members.remove(path)
		return Job{}, ErrClosed
	}
}

// Dequeue removes and returns the oldest pending job, blocking until one is
// available. The job stays in the duplicate set until Done is called.
func (q *Queue) Dequeue(ctx context.Context) (Job, error) {
	select {
	case job := <-q.jobs:
		return job, nil
	default:
	}
	select {
	case job := <-q.jobs:
		return job, nil
	case <-ctx.Done():
		return Job{}, ctx.Err()
	case <-q.quit:
		return Job{}, ErrClosed
	}
}

// Done releases a finished job from the duplicate set, allowing the path to
// be enqueued again.
func (q *Queue) Done(job Job) {
	q.members.remove(job.Path)
}

// Len reports the number of pending jobs.
func (q *Queue) Len() int {
	return len(q.jobs)
}

// Close shuts the queue down. Blocked Enqueue and Dequeue calls return
// ErrClosed; pending jobs are discarded.
func (q *Queue) Close() {
	q.quitOnce.Do(func() {
		close(q.quit)
	})
}
