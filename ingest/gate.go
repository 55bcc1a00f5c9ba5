// Package ingest implements the admission gate for new events.
//
// The gate decides synchronously whether an event is accepted for a
// subscription; everything after acceptance is asynchronous and only
// observable through the webhook's status and attempt ledger.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/xraph/courier/id"
	"github.com/xraph/courier/observability"
	"github.com/xraph/courier/queue"
	"github.com/xraph/courier/signature"
	"github.com/xraph/courier/subscription"
	"github.com/xraph/courier/webhook"
)

// Rejection errors raised by the gate. Each maps to a precise,
// synchronous answer for the original caller.
var (
	// ErrSubscriptionInactive is returned when the subscription exists but
	// does not accept new events.
	ErrSubscriptionInactive = errors.New("courier: subscription is not active")

	// ErrSignatureMissing is returned when the subscription has a secret
	// but no signature header was supplied.
	ErrSignatureMissing = errors.New("courier: missing " + signature.Header + " header")

	// ErrSignatureInvalid is returned when the supplied signature does not
	// match the payload.
	ErrSignatureInvalid = errors.New("courier: invalid signature")

	// ErrEventTypeNotAllowed is returned when the subscription restricts
	// event types and the supplied type is not in the allow-list.
	ErrEventTypeNotAllowed = errors.New("courier: event type not allowed by subscription")
)

// Gate admits events and creates their delivery obligations.
type Gate struct {
	resolver *subscription.Resolver
	store    webhook.Store
	queue    queue.Queue
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewGate creates an ingestion gate.
func NewGate(resolver *subscription.Resolver, store webhook.Store, q queue.Queue, metrics *observability.Metrics, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		resolver: resolver,
		store:    store,
		queue:    q,
		metrics:  metrics,
		logger:   logger,
	}
}

// Ingest admits an event for a subscription and returns the new webhook ID.
//
// Checks run in order, each a hard rejection: subscription must exist and
// be active; when the subscription carries a secret the signature header
// must be present and verify over the raw payload; when both the
// subscription restricts event types and the caller names one, the named
// type must be in the allow-list. An empty caller event type is never
// filtered, even against a restrictive allow-list.
//
// On success the webhook is created PENDING and handed to the queue for
// immediate execution. The hand-off is fire and forget: the gate does not
// await delivery.
func (g *Gate) Ingest(ctx context.Context, subID id.ID, eventType string, payload []byte, signatureHeader string) (id.ID, error) {
	sub, err := g.resolver.Resolve(ctx, subID)
	if err != nil {
		return id.Nil, err
	}

	if !sub.Active {
		return id.Nil, ErrSubscriptionInactive
	}

	if sub.Secret != "" {
		if signatureHeader == "" {
			return id.Nil, ErrSignatureMissing
		}
		if !signature.Verify(payload, sub.Secret, signatureHeader) {
			return id.Nil, ErrSignatureInvalid
		}
	}

	if !sub.AllowsEventType(eventType) {
		return id.Nil, ErrEventTypeNotAllowed
	}

	wh := &webhook.Webhook{
		ID:             id.NewWebhookID(),
		SubscriptionID: sub.ID,
		Payload:        json.RawMessage(payload),
		EventType:      eventType,
		Status:         webhook.StatusPending,
		RetryCount:     0,
		CreatedAt:      time.Now().UTC(),
	}

	if err := g.store.CreateWebhook(ctx, wh); err != nil {
		return id.Nil, err
	}

	if g.metrics != nil {
		g.metrics.IngestedTotal.Inc()
		g.metrics.PendingWebhooks.Inc()
	}

	if err := g.queue.Enqueue(ctx, wh.ID); err != nil {
		// The webhook is durable but has no scheduled wake-up. Stamp it due
		// now so the sweeper reconciles it instead of leaving it stranded.
		g.logger.ErrorContext(ctx, "immediate enqueue failed, deferring to sweeper",
			"webhook_id", wh.ID, "error", err)

		now := time.Now().UTC()
		wh.NextRetryAt = &now
		if updateErr := g.store.UpdateWebhook(ctx, wh); updateErr != nil {
			g.logger.ErrorContext(ctx, "stamp webhook for sweep failed",
				"webhook_id", wh.ID, "error", updateErr)
		}
	}

	g.logger.DebugContext(ctx, "event accepted",
		"webhook_id", wh.ID, "subscription_id", sub.ID, "event_type", eventType)

	return wh.ID, nil
}
