package webhook

import (
	"encoding/json"
	"time"

	"github.com/xraph/courier/id"
)

// Status represents the current state of a webhook.
type Status string

const (
	// StatusPending indicates the webhook is awaiting a delivery attempt.
	StatusPending Status = "PENDING"

	// StatusInProgress indicates a delivery attempt is currently executing.
	StatusInProgress Status = "IN_PROGRESS"

	// StatusDelivered indicates the payload was accepted by the target. Terminal.
	StatusDelivered Status = "DELIVERED"

	// StatusFailed indicates delivery was abandoned after exhausting retries
	// or hitting a non-retryable fault. Terminal.
	StatusFailed Status = "FAILED"
)

// IsTerminal reports whether the status permits no further attempts or mutation.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusFailed
}

// Webhook represents one delivery obligation: a single event payload owed
// to a single subscription's endpoint.
type Webhook struct {
	// ID is the unique TypeID for this webhook.
	ID id.ID `json:"id"`

	// SubscriptionID references the owning subscription.
	SubscriptionID id.ID `json:"subscription_id"`

	// Payload is the event body, stored and transmitted verbatim.
	// The engine never inspects its contents.
	Payload json.RawMessage `json:"payload"`

	// EventType is the optional event type label. Empty means unspecified.
	EventType string `json:"event_type,omitempty"`

	// Status is the current delivery state.
	Status Status `json:"status"`

	// RetryCount is the number of failed delivery rounds so far.
	// Never exceeds the configured maximum.
	RetryCount int `json:"retry_count"`

	// NextRetryAt is set only while Status is PENDING and a retry has been
	// scheduled. Cleared on IN_PROGRESS, DELIVERED and FAILED.
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`

	// CreatedAt is when the webhook was accepted.
	CreatedAt time.Time `json:"created_at"`
}
