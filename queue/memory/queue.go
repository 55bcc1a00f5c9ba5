// Package memory provides an in-process queue implementation: an
// absolute-time timer scheduler feeding a bounded worker pool.
//
// It is the default queue when none is injected. Jobs live only in process
// memory; a restart loses scheduled wake-ups, which the missed-retry
// sweeper reconciles from the store.
package memory

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/courier/id"
	"github.com/xraph/courier/queue"
)

// ErrStopped is returned when enqueueing after Stop.
var ErrStopped = errors.New("courier/queue: queue is stopped")

type job struct {
	whID id.ID
	at   time.Time
}

// Queue schedules delivery jobs with per-job timers and executes them on a
// worker pool bounded by a semaphore.
type Queue struct {
	concurrency int
	logger      *slog.Logger

	mu      sync.Mutex
	runner  queue.Runner
	ctx     context.Context
	cancel  context.CancelFunc
	sem     chan struct{}
	timers  map[int64]*time.Timer
	seq     int64
	backlog []job // jobs accepted before Start
	stopped bool

	wg sync.WaitGroup
}

// New creates an in-process queue with the given worker concurrency.
func New(concurrency int, logger *slog.Logger) *Queue {
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		concurrency: concurrency,
		logger:      logger,
		timers:      make(map[int64]*time.Timer),
	}
}

// Enqueue schedules the webhook for immediate execution.
func (q *Queue) Enqueue(ctx context.Context, whID id.ID) error {
	return q.EnqueueAt(ctx, whID, time.Now())
}

// EnqueueAt schedules the webhook for execution at the given absolute time.
func (q *Queue) EnqueueAt(_ context.Context, whID id.ID, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return ErrStopped
	}
	if q.ctx == nil {
		q.backlog = append(q.backlog, job{whID: whID, at: at})
		return nil
	}

	q.scheduleLocked(whID, at)
	return nil
}

// Bind sets the runner jobs are dispatched to. Must be called before Start.
func (q *Queue) Bind(r queue.Runner) {
	q.mu.Lock()
	q.runner = r
	q.mu.Unlock()
}

// Start begins dispatching jobs, including any accepted before Start.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.ctx != nil || q.stopped {
		return
	}

	q.ctx, q.cancel = context.WithCancel(ctx)
	q.sem = make(chan struct{}, q.concurrency)

	backlog := q.backlog
	q.backlog = nil
	for _, j := range backlog {
		q.scheduleLocked(j.whID, j.at)
	}
}

// Stop cancels pending timers and waits for in-flight jobs to complete.
func (q *Queue) Stop(_ context.Context) {
	q.mu.Lock()
	q.stopped = true
	for seq, t := range q.timers {
		t.Stop()
		delete(q.timers, seq)
	}
	if q.cancel != nil {
		q.cancel()
	}
	q.mu.Unlock()

	q.wg.Wait()
}

// scheduleLocked arms a timer for the job. Due or past times dispatch
// immediately. Caller must hold q.mu.
func (q *Queue) scheduleLocked(whID id.ID, at time.Time) {
	delay := time.Until(at)
	if delay <= 0 {
		q.wg.Add(1)
		go q.run(whID)
		return
	}

	q.seq++
	seq := q.seq
	q.timers[seq] = time.AfterFunc(delay, func() {
		q.fire(seq, whID)
	})
}

// fire moves a due timer's job onto the worker pool.
func (q *Queue) fire(seq int64, whID id.ID) {
	q.mu.Lock()
	delete(q.timers, seq)
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.wg.Add(1)
	q.mu.Unlock()

	q.run(whID)
}

// run executes one job, bounded by the worker semaphore.
func (q *Queue) run(whID id.ID) {
	defer q.wg.Done()

	select {
	case q.sem <- struct{}{}:
	case <-q.ctx.Done():
		return
	}
	defer func() { <-q.sem }()

	if err := q.runner.Execute(q.ctx, whID); err != nil {
		q.logger.ErrorContext(q.ctx, "delivery job failed", "webhook_id", whID, "error", err)
	}
}
