// Package bunstore implements the composite store on a SQL database via
// the Bun ORM. It works against PostgreSQL and SQLite; PostgreSQL is the
// production target.
package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"github.com/xraph/courier/id"
	courierstore "github.com/xraph/courier/store"
	"github.com/xraph/courier/subscription"
	"github.com/xraph/courier/webhook"
)

// compile-time interface check.
var _ courierstore.Store = (*Store)(nil)

// Store implements store.Store using the Bun ORM.
type Store struct {
	db *bun.DB
}

// New creates a new Bun-backed store.
func New(db *bun.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying Bun database for direct access.
func (s *Store) DB() *bun.DB { return s.db }

// Migrate creates the required tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	models := []any{
		(*subscriptionModel)(nil),
		(*webhookModel)(nil),
		(*attemptModel)(nil),
	}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_courier_webhooks_due ON courier_webhooks (next_retry_at) WHERE status = 'PENDING'",
		"CREATE INDEX IF NOT EXISTS idx_courier_webhooks_subscription ON courier_webhooks (subscription_id, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_courier_attempts_webhook ON courier_attempts (webhook_id)",
		"CREATE INDEX IF NOT EXISTS idx_courier_attempts_attempted_at ON courier_attempts (attempted_at)",
	}
	for _, ddl := range indexes {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return err
		}
	}

	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Subscription Store ====================

func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	return err
}

func (s *Store) GetSubscription(ctx context.Context, subID id.ID) (*subscription.Subscription, error) {
	m := new(subscriptionModel)
	err := s.db.NewSelect().
		Model(m).
		Where("id = ?", subID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, subscription.ErrNotFound
		}
		return nil, err
	}
	return fromSubscriptionModel(m)
}

func (s *Store) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	res, err := s.db.NewUpdate().
		Model(m).
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return subscription.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteSubscription(ctx context.Context, subID id.ID) error {
	res, err := s.db.NewDelete().
		Model((*subscriptionModel)(nil)).
		Where("id = ?", subID.String()).
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return subscription.ErrNotFound
	}
	return nil
}

func (s *Store) ListSubscriptions(ctx context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	var models []subscriptionModel
	q := s.db.NewSelect().Model(&models)
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.Order("created_at ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*subscription.Subscription, len(models))
	for i := range models {
		sub, err := fromSubscriptionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = sub
	}
	return result, nil
}

// ==================== Webhook Store ====================

func (s *Store) CreateWebhook(ctx context.Context, wh *webhook.Webhook) error {
	m := toWebhookModel(wh)
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	return err
}

func (s *Store) GetWebhook(ctx context.Context, whID id.ID) (*webhook.Webhook, error) {
	m := new(webhookModel)
	err := s.db.NewSelect().
		Model(m).
		Where("id = ?", whID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, webhook.ErrNotFound
		}
		return nil, err
	}
	return fromWebhookModel(m)
}

// ClaimPending transitions PENDING to IN_PROGRESS with a conditional
// update, so exactly one concurrent claimer gets a row back.
func (s *Store) ClaimPending(ctx context.Context, whID id.ID) (*webhook.Webhook, error) {
	m := new(webhookModel)
	err := s.db.NewRaw(`
		UPDATE courier_webhooks
		SET status = ?, next_retry_at = NULL
		WHERE id = ? AND status = ?
		RETURNING *
	`, string(webhook.StatusInProgress), whID.String(), string(webhook.StatusPending)).Scan(ctx, m)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Distinguish a missing webhook from a lost race.
			if _, getErr := s.GetWebhook(ctx, whID); getErr != nil {
				return nil, getErr
			}
			return nil, webhook.ErrNotPending
		}
		return nil, err
	}
	return fromWebhookModel(m)
}

func (s *Store) UpdateWebhook(ctx context.Context, wh *webhook.Webhook) error {
	m := toWebhookModel(wh)
	res, err := s.db.NewUpdate().
		Model(m).
		WherePK().
		Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return webhook.ErrNotFound
	}
	return nil
}

func (s *Store) ListBySubscription(ctx context.Context, subID id.ID, limit int) ([]*webhook.Webhook, error) {
	var models []webhookModel
	q := s.db.NewSelect().
		Model(&models).
		Where("subscription_id = ?", subID.String()).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*webhook.Webhook, len(models))
	for i := range models {
		wh, err := fromWebhookModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = wh
	}
	return result, nil
}

func (s *Store) ListDueRetries(ctx context.Context, now time.Time, maxRetries int) ([]*webhook.Webhook, error) {
	var models []webhookModel
	err := s.db.NewSelect().
		Model(&models).
		Where("status = ?", string(webhook.StatusPending)).
		Where("next_retry_at IS NOT NULL").
		Where("next_retry_at <= ?", now).
		Where("retry_count < ?", maxRetries).
		Order("next_retry_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*webhook.Webhook, len(models))
	for i := range models {
		wh, err := fromWebhookModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = wh
	}
	return result, nil
}

func (s *Store) CountByStatus(ctx context.Context, status webhook.Status) (int64, error) {
	count, err := s.db.NewSelect().
		Model((*webhookModel)(nil)).
		Where("status = ?", string(status)).
		Count(ctx)
	return int64(count), err
}

// ==================== Attempt Store ====================

func (s *Store) AppendAttempt(ctx context.Context, att *webhook.DeliveryAttempt) error {
	m := toAttemptModel(att)
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	return err
}

func (s *Store) ListAttempts(ctx context.Context, whID id.ID) ([]*webhook.DeliveryAttempt, error) {
	var models []attemptModel
	err := s.db.NewSelect().
		Model(&models).
		Where("webhook_id = ?", whID.String()).
		Order("attempt_number ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*webhook.DeliveryAttempt, len(models))
	for i := range models {
		att, err := fromAttemptModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = att
	}
	return result, nil
}

func (s *Store) DeleteAttemptsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.NewDelete().
		Model((*attemptModel)(nil)).
		Where("attempted_at < ?", cutoff).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
