package subscription

import (
	"time"

	"github.com/xraph/courier/id"
)

// Subscription represents a registered delivery target plus its policy:
// signing secret, allowed event types, and active flag.
type Subscription struct {
	// ID is the unique TypeID for this subscription.
	ID id.ID `json:"id"`

	// TargetURL is the endpoint payloads are POSTed to.
	TargetURL string `json:"target_url"`

	// Secret is the optional HMAC signing secret. Empty means ingestion
	// skips signature checks and deliveries carry no signature header.
	Secret string `json:"-"`

	// EventTypes is the allow-list of event type labels. Empty accepts all.
	EventTypes []string `json:"event_types"`

	// Active indicates whether the subscription accepts new events.
	Active bool `json:"active"`

	// CreatedAt is when the subscription was registered.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the subscription was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// AllowsEventType reports whether the allow-list admits the given event
// type. An empty allow-list admits everything, and an empty event type is
// never filtered: filtering applies only when both the subscription
// restricts types and the caller names one.
func (s *Subscription) AllowsEventType(eventType string) bool {
	if eventType == "" || len(s.EventTypes) == 0 {
		return true
	}
	for _, et := range s.EventTypes {
		if et == eventType {
			return true
		}
	}
	return false
}

// ListOpts configures pagination for subscription listing.
type ListOpts struct {
	Offset int
	Limit  int
}
