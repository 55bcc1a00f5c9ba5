package courier

import (
	"errors"

	"github.com/xraph/courier/ingest"
	"github.com/xraph/courier/store"
	"github.com/xraph/courier/subscription"
	"github.com/xraph/courier/webhook"
)

// ErrNoStore is returned when a Courier is created without a store.
var ErrNoStore = errors.New("courier: store is required")

// Sentinel errors re-exported from the subsystem packages, so callers can
// errors.Is against the root package alone.
var (
	// ErrSubscriptionNotFound is returned when a subscription cannot be found.
	ErrSubscriptionNotFound = subscription.ErrNotFound

	// ErrWebhookNotFound is returned when a webhook cannot be found.
	ErrWebhookNotFound = webhook.ErrNotFound

	// ErrWebhookNotPending is returned when claiming a webhook that is not PENDING.
	ErrWebhookNotPending = webhook.ErrNotPending

	// ErrSubscriptionInactive is returned when ingesting for an inactive subscription.
	ErrSubscriptionInactive = ingest.ErrSubscriptionInactive

	// ErrSignatureMissing is returned when the subscription requires a
	// signature and none was supplied.
	ErrSignatureMissing = ingest.ErrSignatureMissing

	// ErrSignatureInvalid is returned when the supplied signature does not verify.
	ErrSignatureInvalid = ingest.ErrSignatureInvalid

	// ErrEventTypeNotAllowed is returned when the event type is not in the
	// subscription's allow-list.
	ErrEventTypeNotAllowed = ingest.ErrEventTypeNotAllowed

	// ErrStoreClosed is returned when a store operation is attempted after Close.
	ErrStoreClosed = store.ErrClosed
)
