package subscription

import (
	"context"
	"errors"

	"github.com/xraph/courier/id"
)

// ErrNotFound is returned when a subscription cannot be found.
var ErrNotFound = errors.New("courier: subscription not found")

// Store defines the persistence contract for subscriptions.
type Store interface {
	// CreateSubscription persists a new subscription.
	CreateSubscription(ctx context.Context, sub *Subscription) error

	// GetSubscription returns a subscription by ID.
	GetSubscription(ctx context.Context, subID id.ID) (*Subscription, error)

	// UpdateSubscription modifies an existing subscription.
	UpdateSubscription(ctx context.Context, sub *Subscription) error

	// DeleteSubscription removes a subscription.
	DeleteSubscription(ctx context.Context, subID id.ID) error

	// ListSubscriptions returns subscriptions, oldest first.
	ListSubscriptions(ctx context.Context, opts ListOpts) ([]*Subscription, error)
}
