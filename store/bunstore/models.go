package bunstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/xraph/courier/id"
	"github.com/xraph/courier/subscription"
	"github.com/xraph/courier/webhook"
)

// --- Subscription models ---

type subscriptionModel struct {
	bun.BaseModel `bun:"table:courier_subscriptions,alias:s"`

	ID         string    `bun:"id,pk"`
	TargetURL  string    `bun:"target_url,notnull"`
	Secret     string    `bun:"secret"`
	EventTypes []string  `bun:"event_types,type:jsonb"`
	Active     bool      `bun:"active,notnull"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
	UpdatedAt  time.Time `bun:"updated_at,notnull"`
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

// --- Webhook models ---

type webhookModel struct {
	bun.BaseModel `bun:"table:courier_webhooks,alias:w"`

	ID             string          `bun:"id,pk"`
	SubscriptionID string          `bun:"subscription_id,notnull"`
	Payload        json.RawMessage `bun:"payload,type:jsonb"`
	EventType      string          `bun:"event_type"`
	Status         string          `bun:"status,notnull"`
	RetryCount     int             `bun:"retry_count,notnull"`
	NextRetryAt    *time.Time      `bun:"next_retry_at"`
	CreatedAt      time.Time       `bun:"created_at,notnull"`
}

func toWebhookModel(wh *webhook.Webhook) *webhookModel {
	return &webhookModel{
		ID:             wh.ID.String(),
		SubscriptionID: wh.SubscriptionID.String(),
		Payload:        wh.Payload,
		EventType:      wh.EventType,
		Status:         string(wh.Status),
		RetryCount:     wh.RetryCount,
		NextRetryAt:    wh.NextRetryAt,
		CreatedAt:      wh.CreatedAt,
	}
}

func fromWebhookModel(m *webhookModel) (*webhook.Webhook, error) {
	whID, err := id.ParseWebhookID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse webhook ID %q: %w", m.ID, err)
	}
	subID, err := id.ParseSubscriptionID(m.SubscriptionID)
	if err != nil {
		return nil, fmt.Errorf("parse subscription ID %q: %w", m.SubscriptionID, err)
	}
	return &webhook.Webhook{
		ID:             whID,
		SubscriptionID: subID,
		Payload:        m.Payload,
		EventType:      m.EventType,
		Status:         webhook.Status(m.Status),
		RetryCount:     m.RetryCount,
		NextRetryAt:    m.NextRetryAt,
		CreatedAt:      m.CreatedAt,
	}, nil
}

// --- Delivery attempt models ---

type attemptModel struct {
	bun.BaseModel `bun:"table:courier_attempts,alias:a"`

	ID            string    `bun:"id,pk"`
	WebhookID     string    `bun:"webhook_id,notnull"`
	AttemptNumber int       `bun:"attempt_number,notnull"`
	AttemptedAt   time.Time `bun:"attempted_at,notnull"`
	StatusCode    int       `bun:"status_code"`
	ErrorDetail   string    `bun:"error_detail"`
	IsSuccess     bool      `bun:"is_success,notnull"`
}

func toAttemptModel(att *webhook.DeliveryAttempt) *attemptModel {
	return &attemptModel{
		ID:            att.ID.String(),
		WebhookID:     att.WebhookID.String(),
		AttemptNumber: att.AttemptNumber,
		AttemptedAt:   att.Timestamp,
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
		Timestamp:     m.AttemptedAt,
		StatusCode:    m.StatusCode,
		ErrorDetail:   m.ErrorDetail,
		IsSuccess:     m.IsSuccess,
	}, nil
}
