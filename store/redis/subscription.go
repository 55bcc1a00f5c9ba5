package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/courier/id"
	"github.com/xraph/courier/subscription"
)

// subscriptionModel is the JSON representation stored in Redis.
type subscriptionModel struct {
	ID         string    `json:"id"`
	TargetURL  string    `json:"target_url"`
	Secret     string    `json:"secret"`
	EventTypes []string  `json:"event_types"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toSubscriptionModel(sub *subscription.Subscription) *subscriptionModel {
	return &subscriptionModel{
		ID:         sub.ID.String(),
		TargetURL:  sub.TargetURL,
		Secret:     sub.Secret,
		EventTypes: sub.EventTypes,
		Active:     sub.Active,
		CreatedAt:  sub.CreatedAt,
		UpdatedAt:  sub.UpdatedAt,
	}
}

func fromSubscriptionModel(m *subscriptionModel) (*subscription.Subscription, error) {
	subID, err := id.ParseSubscriptionID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse subscription ID %q: %w", m.ID, err)
	}
	return &subscription.Subscription{
		ID:         subID,
		TargetURL:  m.TargetURL,
		Secret:     m.Secret,
		EventTypes: m.EventTypes,
		Active:     m.Active,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}, nil
}

func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	if err := s.setEntity(ctx, entityKey(prefixSubscription, m.ID), m); err != nil {
		return fmt.Errorf("courier/redis: create subscription: %w", err)
	}
	err := s.rdb.ZAdd(ctx, zSubscriptionAll, goredis.Z{
		Score:  scoreFromTime(m.CreatedAt),
		Member: m.ID,
	}).Err()
	if err != nil {
		return fmt.Errorf("courier/redis: index subscription: %w", err)
	}
	return nil
}

func (s *Store) GetSubscription(ctx context.Context, subID id.ID) (*subscription.Subscription, error) {
	m := new(subscriptionModel)
	if err := s.getEntity(ctx, entityKey(prefixSubscription, subID.String()), m); err != nil {
		if isNotFound(err) {
			return nil, subscription.ErrNotFound
		}
		return nil, err
	}
	return fromSubscriptionModel(m)
}

func (s *Store) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	key := entityKey(prefixSubscription, sub.ID.String())
	if _, err := s.kv.GetRaw(ctx, key); err != nil {
		if isNotFound(err) {
			return subscription.ErrNotFound
		}
		return err
	}
	return s.setEntity(ctx, key, toSubscriptionModel(sub))
}

func (s *Store) DeleteSubscription(ctx context.Context, subID id.ID) error {
	key := entityKey(prefixSubscription, subID.String())
	if _, err := s.kv.GetRaw(ctx, key); err != nil {
		if isNotFound(err) {
			return subscription.ErrNotFound
		}
		return err
	}
	if err := s.kv.Delete(ctx, key); err != nil {
		return err
	}
	return s.rdb.ZRem(ctx, zSubscriptionAll, subID.String()).Err()
}

func (s *Store) ListSubscriptions(ctx context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	start := int64(opts.Offset)
	stop := int64(-1)
	if opts.Limit > 0 {
		stop = start + int64(opts.Limit) - 1
	}

	ids, err := s.rdb.ZRange(ctx, zSubscriptionAll, start, stop).Result()
	if err != nil {
		return nil, err
	}

	result := make([]*subscription.Subscription, 0, len(ids))
	for _, subID := range ids {
		m := new(subscriptionModel)
		if err := s.getEntity(ctx, entityKey(prefixSubscription, subID), m); err != nil {
			if isNotFound(err) {
				// Index entry outlived the entity; skip it.
				continue
			}
			return nil, err
		}
		sub, err := fromSubscriptionModel(m)
		if err != nil {
			return nil, err
		}
		result = append(result, sub)
	}
	return result, nil
}
