package deliver

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/courier/observability"
	"github.com/xraph/courier/queue"
	"github.com/xraph/courier/webhook"
)

// Scheduler decides what happens to a webhook after a failed delivery
// round: schedule a retry on the backoff curve, or abandon it as FAILED.
type Scheduler struct {
	store      webhook.Store
	queue      queue.Queue
	maxRetries int
	backoff    []time.Duration
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewScheduler creates a retry scheduler.
//
// The backoff schedule is indexed by retry count; counts past the end
// saturate at the last entry, so a short schedule with a long tail value
// degrades gracefully rather than panicking or wrapping around.
func NewScheduler(store webhook.Store, q queue.Queue, maxRetries int, backoff []time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:      store,
		queue:      q,
		maxRetries: maxRetries,
		backoff:    backoff,
		metrics:    metrics,
		logger:     logger,
	}
}

// HandleFailure records one failed delivery round and either schedules the
// next retry or marks the webhook FAILED when the retry budget is spent.
//
// The caller passes the webhook it claimed; HandleFailure owns all state
// transitions from here. The durable update always lands before the queue
// hand-off, so a crash between the two leaves a PENDING webhook with a due
// next_retry_at for the sweeper rather than a scheduled job with stale state.
func (s *Scheduler) HandleFailure(ctx context.Context, wh *webhook.Webhook) error {
	wh.RetryCount++

	if wh.RetryCount >= s.maxRetries {
		return s.fail(ctx, wh, "retries exhausted")
	}

	delay := s.delayFor(wh.RetryCount)
	at := time.Now().UTC().Add(delay)
	wh.Status = webhook.StatusPending
	wh.NextRetryAt = &at

	if err := s.store.UpdateWebhook(ctx, wh); err != nil {
		return err
	}

	if err := s.queue.EnqueueAt(ctx, wh.ID, at); err != nil {
		// A PENDING webhook must never be left without a wake-up path. The
		// stamped next_retry_at keeps the sweeper as a fallback, but a queue
		// that rejects writes is a fault worth failing loudly over.
		s.logger.ErrorContext(ctx, "schedule retry failed, abandoning webhook",
			"webhook_id", wh.ID, "error", err)
		return s.fail(ctx, wh, "retry scheduling failed")
	}

	s.logger.DebugContext(ctx, "retry scheduled",
		"webhook_id", wh.ID, "retry_count", wh.RetryCount, "next_retry_at", at)
	return nil
}

// fail transitions the webhook to terminal FAILED.
func (s *Scheduler) fail(ctx context.Context, wh *webhook.Webhook, reason string) error {
	wh.Status = webhook.StatusFailed
	wh.NextRetryAt = nil

	if err := s.store.UpdateWebhook(ctx, wh); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.PendingWebhooks.Dec()
	}
	s.logger.WarnContext(ctx, "webhook failed permanently",
		"webhook_id", wh.ID, "retry_count", wh.RetryCount, "reason", reason)
	return nil
}

// delayFor returns the backoff delay for the given retry count (1-based).
func (s *Scheduler) delayFor(retryCount int) time.Duration {
	if len(s.backoff) == 0 {
		return 0
	}
	idx := retryCount - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(s.backoff) {
		idx = len(s.backoff) - 1
	}
	return s.backoff[idx]
}
