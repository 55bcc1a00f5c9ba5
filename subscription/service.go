package subscription

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/xraph/courier/id"
)

// Input is the creation/update payload for subscriptions.
type Input struct {
	// TargetURL is the endpoint payloads are POSTed to.
	TargetURL string `json:"target_url"`

	// Secret is the optional HMAC signing secret. Left empty, ingestion
	// performs no signature checks for this subscription.
	Secret string `json:"secret,omitempty"`

	// EventTypes is the allow-list of event type labels. Empty accepts all.
	EventTypes []string `json:"event_types,omitempty"`

	// Active toggles the subscription on update. Nil leaves it unchanged.
	Active *bool `json:"active,omitempty"`
}

// ValidationError indicates invalid input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return "subscription validation: " + e.Field + ": " + e.Message
}

// Service provides subscription management. Mutations keep the resolver
// cache coherent: updates and deletes invalidate, creates populate lazily
// on first resolve.
type Service struct {
	store    Store
	resolver *Resolver
	logger   *slog.Logger
}

// NewService creates a new subscription service.
func NewService(store Store, resolver *Resolver, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		resolver: resolver,
		logger:   logger,
	}
}

// Create registers a new subscription. New subscriptions are active.
func (svc *Service) Create(ctx context.Context, in Input) (*Subscription, error) {
	if _, err := url.ParseRequestURI(in.TargetURL); err != nil {
		return nil, &ValidationError{Field: "target_url", Message: "invalid URL"}
	}

	now := time.Now().UTC()
	sub := &Subscription{
		ID:         id.NewSubscriptionID(),
		TargetURL:  in.TargetURL,
		Secret:     in.Secret,
		EventTypes: in.EventTypes,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := svc.store.CreateSubscription(ctx, sub); err != nil {
		return nil, err
	}

	return sub, nil
}

// Get returns a subscription by ID, through the resolver cache.
func (svc *Service) Get(ctx context.Context, subID id.ID) (*Subscription, error) {
	return svc.resolver.Resolve(ctx, subID)
}

// Update modifies an existing subscription and invalidates its cache entry.
func (svc *Service) Update(ctx context.Context, subID id.ID, in Input) (*Subscription, error) {
	sub, err := svc.store.GetSubscription(ctx, subID)
	if err != nil {
		return nil, err
	}

	if in.TargetURL != "" {
		if _, err := url.ParseRequestURI(in.TargetURL); err != nil {
			return nil, &ValidationError{Field: "target_url", Message: "invalid URL"}
		}
		sub.TargetURL = in.TargetURL
	}
	if in.Secret != "" {
		sub.Secret = in.Secret
	}
	if in.EventTypes != nil {
		sub.EventTypes = in.EventTypes
	}
	if in.Active != nil {
		sub.Active = *in.Active
	}
	sub.UpdatedAt = time.Now().UTC()

	if err := svc.store.UpdateSubscription(ctx, sub); err != nil {
		return nil, err
	}

	svc.resolver.Invalidate(ctx, subID)
	return sub, nil
}

// Delete removes a subscription and invalidates its cache entry.
func (svc *Service) Delete(ctx context.Context, subID id.ID) error {
	if err := svc.store.DeleteSubscription(ctx, subID); err != nil {
		return err
	}

	svc.resolver.Invalidate(ctx, subID)
	return nil
}

// List returns subscriptions, oldest first.
func (svc *Service) List(ctx context.Context, opts ListOpts) ([]*Subscription, error) {
	return svc.store.ListSubscriptions(ctx, opts)
}
