package subscription

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/xraph/courier/cache"
	"github.com/xraph/courier/id"
)

// cacheKey returns the cache key for a subscription ID.
func cacheKey(subID id.ID) string {
	return "subscription:" + subID.String()
}

// cachedSubscription is the cache representation. The secret must survive
// the round trip, so it is serialized here even though Subscription's JSON
// form omits it.
type cachedSubscription struct {
	Subscription
	Secret string `json:"secret,omitempty"`
}

// Resolver is the read-through subscription lookup used on the hot paths:
// ingestion admission and delivery execution. Cache misses fall through to
// the store and populate the cache with the configured TTL. Staleness up
// to the TTL is an accepted trade-off, not a correctness bug.
type Resolver struct {
	store  Store
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewResolver creates a read-through resolver over store and cache.
func NewResolver(store Store, c cache.Cache, ttl time.Duration, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:  store,
		cache:  c,
		ttl:    ttl,
		logger: logger,
	}
}

// Resolve returns the subscription for subID, consulting the cache first.
// Cache failures degrade to store reads; they are logged, never surfaced.
func (r *Resolver) Resolve(ctx context.Context, subID id.ID) (*Subscription, error) {
	key := cacheKey(subID)

	raw, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		r.logger.WarnContext(ctx, "subscription cache read failed", "subscription_id", subID, "error", err)
	} else if ok {
		var cached cachedSubscription
		if unmarshalErr := json.Unmarshal(raw, &cached); unmarshalErr == nil {
			sub := cached.Subscription
			sub.Secret = cached.Secret
			return &sub, nil
		}
		// Corrupt entry: drop it and fall through to the store.
		_ = r.cache.Delete(ctx, key)
	}

	sub, err := r.store.GetSubscription(ctx, subID)
	if err != nil {
		return nil, err
	}

	r.populate(ctx, sub)
	return sub, nil
}

// populate writes a subscription into the cache with the resolver TTL.
func (r *Resolver) populate(ctx context.Context, sub *Subscription) {
	cached := cachedSubscription{Subscription: *sub, Secret: sub.Secret}
	raw, err := json.Marshal(cached)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, cacheKey(sub.ID), raw, r.ttl); err != nil {
		r.logger.WarnContext(ctx, "subscription cache write failed", "subscription_id", sub.ID, "error", err)
	}
}

// Invalidate removes a subscription from the cache. Called on mutation so
// readers do not serve the full TTL of staleness after an explicit change.
func (r *Resolver) Invalidate(ctx context.Context, subID id.ID) {
	if err := r.cache.Delete(ctx, cacheKey(subID)); err != nil {
		r.logger.WarnContext(ctx, "subscription cache invalidation failed", "subscription_id", subID, "error", err)
	}
}
