// Package dispatch owns the serialized delivery worker: a FIFO in-memory
// queue drained by exactly one goroutine at a time, so at most one reply is
// ever being composed regardless of how many webhook requests enqueue
// concurrently.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/glowagent/omnigate/internal/meta"
	"github.com/glowagent/omnigate/internal/ttlcache"
)

// Job is one accepted inbound event awaiting orchestration. Jobs live only
// in memory: a crash loses whatever was in flight, accepted behavior under
// the no-retry policy.
type Job struct {
	Event         *meta.Event
	CorrelationID string
}

// Runner processes one job; the queue calls it strictly serially.
type Runner func(ctx context.Context, job Job) error

// Queue is the single-flight dispatch queue. Enqueue may be called from any
// goroutine; the draining flag guards re-entrancy so a second trigger never
// spawns a parallel drain.
type Queue struct {
	mu       sync.Mutex
	idle     *sync.Cond
	jobs     []Job
	draining bool

	logger  *slog.Logger
	replied *ttlcache.Cache
	run     Runner
	timeout time.Duration
}

// New creates a queue. replied is the post-dequeue one-reply cache keyed by
// event id; timeout bounds each job so a hung external call cannot stall
// the drain loop forever.
func New(log *slog.Logger, replied *ttlcache.Cache, run Runner, timeout time.Duration) *Queue {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	q := &Queue{
		logger:  log.With(slog.String("component", "dispatch")),
		replied: replied,
		run:     run,
		timeout: timeout,
	}
	q.idle = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends the job and starts a drain unless one is already running.
// It never blocks on processing.
func (q *Queue) Enqueue(job Job) {
	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	if q.draining {
		q.mu.Unlock()
		return
	}
	q.draining = true
	q.mu.Unlock()
	go q.drain()
}

// Depth returns the number of queued jobs not yet picked up.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Wait blocks until the queue is empty and no job is in flight. Used by
// shutdown and tests.
func (q *Queue) Wait() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for q.draining || len(q.jobs) > 0 {
		q.idle.Wait()
	}
}

func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.jobs) == 0 {
			q.draining = false
			q.idle.Broadcast()
			q.mu.Unlock()
			return
		}
		job := q.jobs[0]
		q.jobs = q.jobs[1:]
		q.mu.Unlock()

		q.process(job)
	}
}

// process runs one job. A job whose event id is already in the replied
// cache is skipped without side effects; any error is logged with the
// correlation id and the job dropped, so a failure never halts the drain.
func (q *Queue) process(job Job) {
	if q.replied.Has(job.Event.EventID) {
		q.logger.Debug("job_skipped_already_replied",
			slog.String("correlation_id", job.CorrelationID),
			slog.String("event_id", job.Event.EventID))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	defer cancel()

	if err := q.run(ctx, job); err != nil {
		q.logger.Error("job_failed",
			slog.String("correlation_id", job.CorrelationID),
			slog.String("event_id", job.Event.EventID),
			slog.Any("error", err))
		return
	}
	q.replied.Set(job.Event.EventID)
}
