// Package deliver implements the delivery side of the engine: the
// executor that runs attempts, the scheduler that spaces retries, the
// sweeper that rescues missed retries and the janitor that enforces
// attempt retention.
package deliver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/courier/id"
	"github.com/xraph/courier/observability"
	"github.com/xraph/courier/subscription"
	"github.com/xraph/courier/webhook"
)

// Executor runs a single delivery attempt for a webhook. It implements
// queue.Runner, so any queue can dispatch into it.
type Executor struct {
	store      webhook.Store
	resolver   *subscription.Resolver
	sender     *Sender
	scheduler  *Scheduler
	maxRetries int
	metrics    *observability.Metrics
	tracer     *observability.Tracer
	logger     *slog.Logger
}

// NewExecutor creates a delivery executor.
func NewExecutor(store webhook.Store, resolver *subscription.Resolver, sender *Sender, scheduler *Scheduler, maxRetries int, metrics *observability.Metrics, tracer *observability.Tracer, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		store:      store,
		resolver:   resolver,
		sender:     sender,
		scheduler:  scheduler,
		maxRetries: maxRetries,
		metrics:    metrics,
		tracer:     tracer,
		logger:     logger,
	}
}

// Execute runs one delivery attempt for the given webhook ID.
//
// The claim is the concurrency guard: only the invocation that wins the
// PENDING to IN_PROGRESS transition proceeds, so duplicate or stale queue
// jobs collapse into no-ops here. A webhook that no longer exists is also
// a no-op: the job is a ghost, retrying it cannot help.
//
// Unexpected internal faults mid-attempt (subscription lookup, ledger
// writes) poison the webhook: it is marked FAILED with the retry budget
// spent, so a fault that would repeat forever cannot hold a delivery slot
// hostage.
func (e *Executor) Execute(ctx context.Context, whID id.ID) error {
	wh, err := e.store.ClaimPending(ctx, whID)
	if err != nil {
		switch {
		case errors.Is(err, webhook.ErrNotFound):
			e.logger.ErrorContext(ctx, "delivery job references missing webhook", "webhook_id", whID)
			return nil
		case errors.Is(err, webhook.ErrNotPending):
			e.logger.DebugContext(ctx, "webhook already claimed or terminal", "webhook_id", whID)
			return nil
		default:
			return fmt.Errorf("claim webhook %s: %w", whID, err)
		}
	}

	attemptNumber := wh.RetryCount + 1

	sub, err := e.resolver.Resolve(ctx, wh.SubscriptionID)
	if err != nil {
		return e.poison(ctx, wh, fmt.Errorf("resolve subscription %s: %w", wh.SubscriptionID, err))
	}

	var res Result
	if e.tracer != nil {
		spanCtx, span := e.tracer.StartAttemptSpan(ctx, wh.ID.String(), sub.ID.String(), attemptNumber)
		res = e.sender.Send(spanCtx, sub, wh)
		e.tracer.EndAttemptSpan(span, res.StatusCode, res.Error)
	} else {
		res = e.sender.Send(ctx, sub, wh)
	}

	att := &webhook.DeliveryAttempt{
		ID:            id.NewAttemptID(),
		WebhookID:     wh.ID,
		AttemptNumber: attemptNumber,
		Timestamp:     time.Now().UTC(),
		StatusCode:    res.StatusCode,
		IsSuccess:     res.Received() && res.Success(),
	}
	if !att.IsSuccess {
		att.ErrorDetail = webhook.TruncateDetail(res.Detail())
	}

	if err := e.store.AppendAttempt(ctx, att); err != nil {
		return e.poison(ctx, wh, fmt.Errorf("append attempt for %s: %w", wh.ID, err))
	}

	if att.IsSuccess {
		wh.Status = webhook.StatusDelivered
		wh.NextRetryAt = nil
		if err := e.store.UpdateWebhook(ctx, wh); err != nil {
			return e.poison(ctx, wh, fmt.Errorf("mark delivered %s: %w", wh.ID, err))
		}

		if e.metrics != nil {
			e.metrics.RecordDelivery("delivered", float64(res.LatencyMs)/1000)
			e.metrics.PendingWebhooks.Dec()
		}
		e.logger.InfoContext(ctx, "webhook delivered",
			"webhook_id", wh.ID, "subscription_id", sub.ID,
			"attempt", attemptNumber, "status_code", res.StatusCode)
		return nil
	}

	if e.metrics != nil {
		e.metrics.RecordDelivery("failed", float64(res.LatencyMs)/1000)
	}
	e.logger.WarnContext(ctx, "delivery attempt failed",
		"webhook_id", wh.ID, "subscription_id", sub.ID,
		"attempt", attemptNumber, "status_code", res.StatusCode, "error", res.Error)

	return e.scheduler.HandleFailure(ctx, wh)
}

// poison abandons a webhook after an internal fault. The retry count is
// pinned to the maximum so the record reads as exhausted rather than
// eligible, and the fault is surfaced to the queue's error log.
func (e *Executor) poison(ctx context.Context, wh *webhook.Webhook, cause error) error {
	e.logger.ErrorContext(ctx, "internal fault during delivery, abandoning webhook",
		"webhook_id", wh.ID, "error", cause)

	wh.Status = webhook.StatusFailed
	wh.RetryCount = e.maxRetries
	wh.NextRetryAt = nil
	if err := e.store.UpdateWebhook(ctx, wh); err != nil {
		e.logger.ErrorContext(ctx, "mark webhook failed after fault",
			"webhook_id", wh.ID, "error", err)
	}

	if e.metrics != nil {
		e.metrics.RecordDelivery("poisoned", 0)
		e.metrics.PendingWebhooks.Dec()
	}
	return cause
}
