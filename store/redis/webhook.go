package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/courier/id"
	"github.com/xraph/courier/webhook"
)

// Webhook hash field names.
const (
	fSubscriptionID = "subscription_id"
	fPayload        = "payload"
	fEventType      = "event_type"
	fStatus         = "status"
	fRetryCount     = "retry_count"
	fNextRetryAt    = "next_retry_at"
	fCreatedAt      = "created_at"
)

// claimScript performs the PENDING to IN_PROGRESS compare-and-set and
// keeps the due zset and status sets consistent in the same atomic step.
// KEYS[1] = webhook hash
// KEYS[2] = due zset
// KEYS[3] = PENDING status set
// KEYS[4] = IN_PROGRESS status set
// ARGV[1] = webhook ID
// ARGV[2] = expected status (PENDING)
// ARGV[3] = claimed status (IN_PROGRESS)
// Returns -1 if the webhook does not exist, 0 if the claim lost, 1 if won.
var claimScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return -1 end
if redis.call('HGET', KEYS[1], 'status') ~= ARGV[2] then return 0 end
redis.call('HSET', KEYS[1], 'status', ARGV[3])
redis.call('HDEL', KEYS[1], 'next_retry_at')
redis.call('ZREM', KEYS[2], ARGV[1])
redis.call('SMOVE', KEYS[3], KEYS[4], ARGV[1])
return 1
`)

// webhookFields renders a webhook as hash fields. next_retry_at is
// handled by the caller since clearing it is an HDEL, not an HSET.
func webhookFields(wh *webhook.Webhook) map[string]any {
	return map[string]any{
		fSubscriptionID: wh.SubscriptionID.String(),
		fPayload:        string(wh.Payload),
		fEventType:      wh.EventType,
		fStatus:         string(wh.Status),
		fRetryCount:     wh.RetryCount,
		fCreatedAt:      wh.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// webhookFromHash reconstructs a webhook from its hash representation.
func webhookFromHash(whID string, fields map[string]string) (*webhook.Webhook, error) {
	parsedID, err := id.ParseWebhookID(whID)
	if err != nil {
		return nil, fmt.Errorf("parse webhook ID %q: %w", whID, err)
	}
	subID, err := id.ParseSubscriptionID(fields[fSubscriptionID])
	if err != nil {
		return nil, fmt.Errorf("parse subscription ID %q: %w", fields[fSubscriptionID], err)
	}
	retryCount, err := strconv.Atoi(fields[fRetryCount])
	if err != nil {
		return nil, fmt.Errorf("parse retry count %q: %w", fields[fRetryCount], err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, fields[fCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", fields[fCreatedAt], err)
	}

	wh := &webhook.Webhook{
		ID:             parsedID,
		SubscriptionID: subID,
		Payload:        json.RawMessage(fields[fPayload]),
		EventType:      fields[fEventType],
		Status:         webhook.Status(fields[fStatus]),
		RetryCount:     retryCount,
		CreatedAt:      createdAt,
	}
	if raw, ok := fields[fNextRetryAt]; ok && raw != "" {
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, fmt.Errorf("parse next_retry_at %q: %w", raw, err)
		}
		wh.NextRetryAt = &at
	}
	return wh, nil
}

func (s *Store) CreateWebhook(ctx context.Context, wh *webhook.Webhook) error {
	key := entityKey(prefixWebhook, wh.ID.String())

	pipe := s.rdb.Pipeline()
	pipe.HSet(ctx, key, webhookFields(wh))
	if wh.NextRetryAt != nil {
		pipe.HSet(ctx, key, fNextRetryAt, wh.NextRetryAt.UTC().Format(time.RFC3339Nano))
		pipe.ZAdd(ctx, zWebhookDue, goredis.Z{Score: scoreFromTime(*wh.NextRetryAt), Member: wh.ID.String()})
	}
	pipe.ZAdd(ctx, zWebhookSub+wh.SubscriptionID.String(), goredis.Z{
		Score:  scoreFromTime(wh.CreatedAt),
		Member: wh.ID.String(),
	})
	pipe.SAdd(ctx, statusSetKey(string(wh.Status)), wh.ID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("courier/redis: create webhook: %w", err)
	}
	return nil
}

func (s *Store) GetWebhook(ctx context.Context, whID id.ID) (*webhook.Webhook, error) {
	fields, err := s.rdb.HGetAll(ctx, entityKey(prefixWebhook, whID.String())).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, webhook.ErrNotFound
	}
	return webhookFromHash(whID.String(), fields)
}

// ClaimPending runs the claim CAS in a Lua script, then reads the claimed
// webhook back. Only the winning claimer mutates the hash afterwards, so
// the follow-up read is not racy.
func (s *Store) ClaimPending(ctx context.Context, whID id.ID) (*webhook.Webhook, error) {
	keys := []string{
		entityKey(prefixWebhook, whID.String()),
		zWebhookDue,
		statusSetKey(string(webhook.StatusPending)),
		statusSetKey(string(webhook.StatusInProgress)),
	}
	res, err := claimScript.Run(ctx, s.rdb, keys,
		whID.String(), string(webhook.StatusPending), string(webhook.StatusInProgress)).Int()
	if err != nil {
		return nil, fmt.Errorf("courier/redis: claim webhook: %w", err)
	}

	switch res {
	case -1:
		return nil, webhook.ErrNotFound
	case 0:
		return nil, webhook.ErrNotPending
	}
	return s.GetWebhook(ctx, whID)
}

func (s *Store) UpdateWebhook(ctx context.Context, wh *webhook.Webhook) error {
	key := entityKey(prefixWebhook, wh.ID.String())

	oldStatus, err := s.rdb.HGet(ctx, key, fStatus).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return webhook.ErrNotFound
		}
		return err
	}

	pipe := s.rdb.Pipeline()
	pipe.HSet(ctx, key, webhookFields(wh))
	if wh.NextRetryAt != nil {
		pipe.HSet(ctx, key, fNextRetryAt, wh.NextRetryAt.UTC().Format(time.RFC3339Nano))
		pipe.ZAdd(ctx, zWebhookDue, goredis.Z{Score: scoreFromTime(*wh.NextRetryAt), Member: wh.ID.String()})
	} else {
		pipe.HDel(ctx, key, fNextRetryAt)
		pipe.ZRem(ctx, zWebhookDue, wh.ID.String())
	}
	if oldStatus != string(wh.Status) {
		pipe.SMove(ctx, statusSetKey(oldStatus), statusSetKey(string(wh.Status)), wh.ID.String())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("courier/redis: update webhook: %w", err)
	}
	return nil
}

func (s *Store) ListBySubscription(ctx context.Context, subID id.ID, limit int) ([]*webhook.Webhook, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	ids, err := s.rdb.ZRevRange(ctx, zWebhookSub+subID.String(), 0, stop).Result()
	if err != nil {
		return nil, err
	}

	result := make([]*webhook.Webhook, 0, len(ids))
	for _, whID := range ids {
		fields, err := s.rdb.HGetAll(ctx, entityKey(prefixWebhook, whID)).Result()
		if err != nil {
			return nil, err
		}
		if len(fields) == 0 {
			continue
		}
		wh, err := webhookFromHash(whID, fields)
		if err != nil {
			return nil, err
		}
		result = append(result, wh)
	}
	return result, nil
}

func (s *Store) ListDueRetries(ctx context.Context, now time.Time, maxRetries int) ([]*webhook.Webhook, error) {
	ids, err := s.rdb.ZRangeByScore(ctx, zWebhookDue, &goredis.ZRangeBy{
		Min: "-inf",
		Max: formatScore(scoreFromTime(now)),
	}).Result()
	if err != nil {
		return nil, err
	}

	result := make([]*webhook.Webhook, 0, len(ids))
	for _, whID := range ids {
		fields, err := s.rdb.HGetAll(ctx, entityKey(prefixWebhook, whID)).Result()
		if err != nil {
			return nil, err
		}
		if len(fields) == 0 {
			continue
		}
		wh, err := webhookFromHash(whID, fields)
		if err != nil {
			return nil, err
		}
		if wh.Status != webhook.StatusPending || wh.RetryCount >= maxRetries {
			continue
		}
		result = append(result, wh)
	}
	return result, nil
}

func (s *Store) CountByStatus(ctx context.Context, status webhook.Status) (int64, error) {
	return s.rdb.SCard(ctx, statusSetKey(string(status))).Result()
}
