package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/courier/id"
	"github.com/xraph/courier/webhook"
)

// attemptModel is the JSON representation stored in Redis.
type attemptModel struct {
	ID            string    `json:"id"`
	WebhookID     string    `json:"webhook_id"`
	AttemptNumber int       `json:"attempt_number"`
	Timestamp     time.Time `json:"timestamp"`
	StatusCode    int       `json:"status_code"`
	ErrorDetail   string    `json:"error_detail"`
	IsSuccess     bool      `json:"is_success"`
}

func toAttemptModel(att *webhook.DeliveryAttempt) *attemptModel {
	return &attemptModel{
		ID:            att.ID.String(),
		WebhookID:     att.WebhookID.String(),
		AttemptNumber: att.AttemptNumber,
		Timestamp:     att.Timestamp,
		StatusCode:    att.StatusCode,
		ErrorDetail:   att.ErrorDetail,
		IsSuccess:     att.IsSuccess,
	}
}

func fromAttemptModel(m *attemptModel) (*webhook.DeliveryAttempt, error) {
	attID, err := id.ParseAttemptID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse attempt ID %q: %w", m.ID, err)
	}
	whID, err := id.ParseWebhookID(m.WebhookID)
	if err != nil {
		return nil, fmt.Errorf("parse webhook ID %q: %w", m.WebhookID, err)
	}
	return &webhook.DeliveryAttempt{
		ID:            attID,
		WebhookID:     whID,
		AttemptNumber: m.AttemptNumber,
		Timestamp:     m.Timestamp,
		StatusCode:    m.StatusCode,
		ErrorDetail:   m.ErrorDetail,
		IsSuccess:     m.IsSuccess,
	}, nil
}

func (s *Store) AppendAttempt(ctx context.Context, att *webhook.DeliveryAttempt) error {
	m := toAttemptModel(att)
	if err := s.setEntity(ctx, entityKey(prefixAttempt, m.ID), m); err != nil {
		return fmt.Errorf("courier/redis: append attempt: %w", err)
	}

	pipe := s.rdb.Pipeline()
	pipe.ZAdd(ctx, zAttemptWebhook+m.WebhookID, goredis.Z{
		Score:  float64(m.AttemptNumber),
		Member: m.ID,
	})
	pipe.ZAdd(ctx, zAttemptTime, goredis.Z{
		Score:  scoreFromTime(m.Timestamp),
		Member: m.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("courier/redis: index attempt: %w", err)
	}
	return nil
}

func (s *Store) ListAttempts(ctx context.Context, whID id.ID) ([]*webhook.DeliveryAttempt, error) {
	ids, err := s.rdb.ZRange(ctx, zAttemptWebhook+whID.String(), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	result := make([]*webhook.DeliveryAttempt, 0, len(ids))
	for _, attID := range ids {
		m := new(attemptModel)
		if err := s.getEntity(ctx, entityKey(prefixAttempt, attID), m); err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		att, err := fromAttemptModel(m)
		if err != nil {
			return nil, err
		}
		result = append(result, att)
	}
	return result, nil
}

func (s *Store) DeleteAttemptsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ids, err := s.rdb.ZRangeByScore(ctx, zAttemptTime, &goredis.ZRangeBy{
		Min: "-inf",
		Max: "(" + formatScore(scoreFromTime(cutoff)),
	}).Result()
	if err != nil {
		return 0, err
	}

	var deleted int64
	for _, attID := range ids {
		m := new(attemptModel)
		if err := s.getEntity(ctx, entityKey(prefixAttempt, attID), m); err != nil {
			if isNotFound(err) {
				// Blob already gone; drop the dangling index entry.
				s.rdb.ZRem(ctx, zAttemptTime, attID)
				continue
			}
			return deleted, err
		}

		pipe := s.rdb.Pipeline()
		pipe.ZRem(ctx, zAttemptWebhook+m.WebhookID, attID)
		pipe.ZRem(ctx, zAttemptTime, attID)
		if _, err := pipe.Exec(ctx); err != nil {
			return deleted, err
		}
		if err := s.kv.Delete(ctx, entityKey(prefixAttempt, attID)); err != nil && !isNotFound(err) {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}
