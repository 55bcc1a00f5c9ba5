// Package memory provides an in-memory Store implementation. It is the
// default backend when none is injected and the workhorse for unit tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/courier/id"
	courierstore "github.com/xraph/courier/store"
	"github.com/xraph/courier/subscription"
	"github.com/xraph/courier/webhook"
)

// compile-time interface check.
var _ courierstore.Store = (*Store)(nil)

// Store is an in-memory implementation of store.Store.
//
// All reads and writes copy records at the boundary, so callers can mutate
// what they get back without racing other goroutines through shared state.
type Store struct {
	mu sync.RWMutex

	subscriptions map[string]*subscription.Subscription // keyed by ID string
	webhooks      map[string]*webhook.Webhook           // keyed by ID string
	attempts      map[string][]*webhook.DeliveryAttempt // keyed by webhook ID string

	closed bool
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		subscriptions: make(map[string]*subscription.Subscription),
		webhooks:      make(map[string]*webhook.Webhook),
		attempts:      make(map[string][]*webhook.DeliveryAttempt),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

// Migrate is a no-op for the in-memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping reports whether the store is open.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return courierstore.ErrClosed
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ──────────────────────────────────────────────────
// subscription.Store
// ──────────────────────────────────────────────────

// CreateSubscription persists a new subscription.
func (s *Store) CreateSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return courierstore.ErrClosed
	}

	s.subscriptions[sub.ID.String()] = cloneSubscription(sub)
	return nil
}

// GetSubscription returns a subscription by ID.
func (s *Store) GetSubscription(_ context.Context, subID id.ID) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subscriptions[subID.String()]
	if !ok {
		return nil, subscription.ErrNotFound
	}
	return cloneSubscription(sub), nil
}

// UpdateSubscription modifies an existing subscription.
func (s *Store) UpdateSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subscriptions[sub.ID.String()]; !ok {
		return subscription.ErrNotFound
	}
	s.subscriptions[sub.ID.String()] = cloneSubscription(sub)
	return nil
}

// DeleteSubscription removes a subscription.
func (s *Store) DeleteSubscription(_ context.Context, subID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subscriptions[subID.String()]; !ok {
		return subscription.ErrNotFound
	}
	delete(s.subscriptions, subID.String())
	return nil
}

// ListSubscriptions returns subscriptions ordered by creation time.
func (s *Store) ListSubscriptions(_ context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*subscription.Subscription, 0, len(s.subscriptions))
	for _, sub := range s.subscriptions {
		all = append(all, sub)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(all) {
			return nil, nil
		}
		all = all[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(all) {
		all = all[:opts.Limit]
	}

	result := make([]*subscription.Subscription, len(all))
	for i, sub := range all {
		result[i] = cloneSubscription(sub)
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// webhook.Store
// ──────────────────────────────────────────────────

// CreateWebhook persists a new webhook.
func (s *Store) CreateWebhook(_ context.Context, wh *webhook.Webhook) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return courierstore.ErrClosed
	}

	s.webhooks[wh.ID.String()] = cloneWebhook(wh)
	return nil
}

// GetWebhook returns a webhook by ID.
func (s *Store) GetWebhook(_ context.Context, whID id.ID) (*webhook.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wh, ok := s.webhooks[whID.String()]
	if !ok {
		return nil, webhook.ErrNotFound
	}
	return cloneWebhook(wh), nil
}

// ClaimPending atomically transitions PENDING to IN_PROGRESS. The check
// and the write happen under one lock hold, so exactly one concurrent
// caller wins.
func (s *Store) ClaimPending(_ context.Context, whID id.ID) (*webhook.Webhook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wh, ok := s.webhooks[whID.String()]
	if !ok {
		return nil, webhook.ErrNotFound
	}
	if wh.Status != webhook.StatusPending {
		return nil, webhook.ErrNotPending
	}

	wh.Status = webhook.StatusInProgress
	wh.NextRetryAt = nil
	return cloneWebhook(wh), nil
}

// UpdateWebhook modifies an existing webhook.
func (s *Store) UpdateWebhook(_ context.Context, wh *webhook.Webhook) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.webhooks[wh.ID.String()]; !ok {
		return webhook.ErrNotFound
	}
	s.webhooks[wh.ID.String()] = cloneWebhook(wh)
	return nil
}

// ListBySubscription returns the most recent webhooks for a subscription.
func (s *Store) ListBySubscription(_ context.Context, subID id.ID, limit int) ([]*webhook.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*webhook.Webhook
	for _, wh := range s.webhooks {
		if wh.SubscriptionID == subID {
			matched = append(matched, wh)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}

	result := make([]*webhook.Webhook, len(matched))
	for i, wh := range matched {
		result[i] = cloneWebhook(wh)
	}
	return result, nil
}

// ListDueRetries returns PENDING webhooks whose next_retry_at has passed
// and whose retry count is below maxRetries.
func (s *Store) ListDueRetries(_ context.Context, now time.Time, maxRetries int) ([]*webhook.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var due []*webhook.Webhook
	for _, wh := range s.webhooks {
		if wh.Status != webhook.StatusPending || wh.NextRetryAt == nil {
			continue
		}
		if wh.NextRetryAt.After(now) || wh.RetryCount >= maxRetries {
			continue
		}
		due = append(due, cloneWebhook(wh))
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].NextRetryAt.Before(*due[j].NextRetryAt)
	})
	return due, nil
}

// CountByStatus returns the number of webhooks in the given status.
func (s *Store) CountByStatus(_ context.Context, status webhook.Status) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, wh := range s.webhooks {
		if wh.Status == status {
			n++
		}
	}
	return n, nil
}

// AppendAttempt inserts a delivery attempt record.
func (s *Store) AppendAttempt(_ context.Context, att *webhook.DeliveryAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return courierstore.ErrClosed
	}

	key := att.WebhookID.String()
	s.attempts[key] = append(s.attempts[key], cloneAttempt(att))
	return nil
}

// ListAttempts returns the attempt ledger for a webhook in attempt order.
func (s *Store) ListAttempts(_ context.Context, whID id.ID) ([]*webhook.DeliveryAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.attempts[whID.String()]
	result := make([]*webhook.DeliveryAttempt, len(stored))
	for i, att := range stored {
		result[i] = cloneAttempt(att)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].AttemptNumber < result[j].AttemptNumber
	})
	return result, nil
}

// DeleteAttemptsBefore removes attempts older than cutoff.
func (s *Store) DeleteAttemptsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for key, atts := range s.attempts {
		kept := atts[:0]
		for _, att := range atts {
			if att.Timestamp.Before(cutoff) {
				deleted++
				continue
			}
			kept = append(kept, att)
		}
		if len(kept) == 0 {
			delete(s.attempts, key)
		} else {
			s.attempts[key] = kept
		}
	}
	return deleted, nil
}

// ──────────────────────────────────────────────────
// Copy helpers
// ──────────────────────────────────────────────────

func cloneSubscription(sub *subscription.Subscription) *subscription.Subscription {
	c := *sub
	c.EventTypes = append([]string(nil), sub.EventTypes...)
	return &c
}

func cloneWebhook(wh *webhook.Webhook) *webhook.Webhook {
	c := *wh
	c.Payload = append([]byte(nil), wh.Payload...)
	if wh.NextRetryAt != nil {
		t := *wh.NextRetryAt
		c.NextRetryAt = &t
	}
	return &c
}

func cloneAttempt(att *webhook.DeliveryAttempt) *webhook.DeliveryAttempt {
	c := *att
	return &c
}
