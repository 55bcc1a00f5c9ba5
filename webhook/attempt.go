package webhook

import (
	"time"

	"github.com/xraph/courier/id"
)

// MaxErrorDetail is the cap on stored error detail, in bytes.
const MaxErrorDetail = 1000

// DeliveryAttempt is the immutable record of one network try for a webhook.
// Attempts form an append-only ledger; only the retention janitor removes them.
type DeliveryAttempt struct {
	// ID is the unique TypeID for this attempt.
	ID id.ID `json:"id"`

	// WebhookID references the owning webhook.
	WebhookID id.ID `json:"webhook_id"`

	// AttemptNumber is 1-based and gapless per webhook.
	AttemptNumber int `json:"attempt_number"`

	// Timestamp is when the attempt was made.
	Timestamp time.Time `json:"timestamp"`

	// StatusCode is the HTTP status code received, or 0 when the failure
	// was at the transport level and no response arrived.
	StatusCode int `json:"status_code,omitempty"`

	// ErrorDetail is the response body or transport error, truncated to
	// MaxErrorDetail bytes. Empty on success.
	ErrorDetail string `json:"error_detail,omitempty"`

	// IsSuccess is true iff a response was received with a 2xx status code.
	IsSuccess bool `json:"is_success"`
}

// TruncateDetail caps s at MaxErrorDetail bytes for storage as error detail.
func TruncateDetail(s string) string {
	if len(s) > MaxErrorDetail {
		return s[:MaxErrorDetail]
	}
	return s
}
