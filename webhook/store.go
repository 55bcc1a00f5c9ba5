package webhook

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/courier/id"
)

// Sentinel errors returned by webhook store implementations.
var (
	// ErrNotFound is returned when a webhook cannot be found.
	ErrNotFound = errors.New("courier: webhook not found")

	// ErrNotPending is returned by ClaimPending when the webhook exists but
	// is not in the PENDING state. Callers treat this as an idempotent no-op:
	// another invocation already claimed the webhook.
	ErrNotPending = errors.New("courier: webhook is not pending")
)

// Store defines the persistence contract for webhooks and their attempt ledger.
type Store interface {
	// CreateWebhook persists a new webhook. Must be durable before returning.
	CreateWebhook(ctx context.Context, wh *Webhook) error

	// GetWebhook returns a webhook by ID.
	GetWebhook(ctx context.Context, whID id.ID) (*Webhook, error)

	// ClaimPending atomically transitions a webhook from PENDING to
	// IN_PROGRESS and clears next_retry_at, returning the claimed webhook.
	// This is a conditional update: exactly one concurrent caller wins.
	// Returns ErrNotFound if the webhook does not exist, ErrNotPending if
	// its current status is anything other than PENDING.
	ClaimPending(ctx context.Context, whID id.ID) (*Webhook, error)

	// UpdateWebhook modifies a webhook (status, retry count, next_retry_at).
	UpdateWebhook(ctx context.Context, wh *Webhook) error

	// ListBySubscription returns the most recent webhooks for a
	// subscription, newest first, capped at limit.
	ListBySubscription(ctx context.Context, subID id.ID, limit int) ([]*Webhook, error)

	// ListDueRetries returns webhooks with status PENDING, a next_retry_at
	// at or before now, and a retry count below maxRetries. Used by the
	// missed-retry sweeper.
	ListDueRetries(ctx context.Context, now time.Time, maxRetries int) ([]*Webhook, error)

	// CountByStatus returns the number of webhooks in the given status.
	CountByStatus(ctx context.Context, status Status) (int64, error)

	// AppendAttempt inserts a delivery attempt record. Attempts are
	// immutable once written.
	AppendAttempt(ctx context.Context, att *DeliveryAttempt) error

	// ListAttempts returns the attempt ledger for a webhook in attempt order.
	ListAttempts(ctx context.Context, whID id.ID) ([]*DeliveryAttempt, error)

	// DeleteAttemptsBefore removes all attempts older than cutoff and
	// returns the number deleted. Never touches webhook rows.
	DeleteAttemptsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
