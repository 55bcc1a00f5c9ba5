package memory_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/courier/id"
	"github.com/xraph/courier/store/memory"
	"github.com/xraph/courier/webhook"
)

func ctx() context.Context { return context.Background() }

func newWebhook(subID id.ID, status webhook.Status) *webhook.Webhook {
	return &webhook.Webhook{
		ID:             id.NewWebhookID(),
		SubscriptionID: subID,
		Payload:        json.RawMessage(`{}`),
		Status:         status,
		CreatedAt:      time.Now().UTC(),
	}
}

func TestClaimPending(t *testing.T) {
	s := memory.New()
	wh := newWebhook(id.NewSubscriptionID(), webhook.StatusPending)
	at := time.Now().UTC()
	wh.NextRetryAt = &at
	if err := s.CreateWebhook(ctx(), wh); err != nil {
		t.Fatal(err)
	}

	claimed, err := s.ClaimPending(ctx(), wh.ID)
	if err != nil {
		t.Fatal(err)
	}
	if claimed.Status != webhook.StatusInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", claimed.Status)
	}
	if claimed.NextRetryAt != nil {
		t.Fatal("claim should clear next_retry_at")
	}

	if _, err := s.ClaimPending(ctx(), wh.ID); !errors.Is(err, webhook.ErrNotPending) {
		t.Fatalf("second claim should lose, got %v", err)
	}
	if _, err := s.ClaimPending(ctx(), id.NewWebhookID()); !errors.Is(err, webhook.ErrNotFound) {
		t.Fatalf("missing webhook should be ErrNotFound, got %v", err)
	}
}

func TestClaimPendingExactlyOneWinner(t *testing.T) {
	s := memory.New()
	wh := newWebhook(id.NewSubscriptionID(), webhook.StatusPending)
	if err := s.CreateWebhook(ctx(), wh); err != nil {
		t.Fatal(err)
	}

	const claimers = 50
	var wg sync.WaitGroup
	var wins, losses int
	var mu sync.Mutex

	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.ClaimPending(ctx(), wh.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, webhook.ErrNotPending):
				losses++
			default:
				t.Errorf("unexpected claim error: %v", err)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly 1 winning claim, got %d", wins)
	}
	if losses != claimers-1 {
		t.Fatalf("expected %d losing claims, got %d", claimers-1, losses)
	}
}

func TestListDueRetries(t *testing.T) {
	s := memory.New()
	subID := id.NewSubscriptionID()
	now := time.Now().UTC()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	due := newWebhook(subID, webhook.StatusPending)
	due.RetryCount = 2
	due.NextRetryAt = &past

	notDue := newWebhook(subID, webhook.StatusPending)
	notDue.NextRetryAt = &future

	exhausted := newWebhook(subID, webhook.StatusPending)
	exhausted.RetryCount = 5
	exhausted.NextRetryAt = &past

	unscheduled := newWebhook(subID, webhook.StatusPending)

	for _, wh := range []*webhook.Webhook{due, notDue, exhausted, unscheduled} {
		if err := s.CreateWebhook(ctx(), wh); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.ListDueRetries(ctx(), now, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != due.ID {
		t.Fatalf("expected only the due webhook, got %v", got)
	}
}

func TestListBySubscription(t *testing.T) {
	s := memory.New()
	subID := id.NewSubscriptionID()

	var last *webhook.Webhook
	for i := 0; i < 3; i++ {
		wh := newWebhook(subID, webhook.StatusDelivered)
		wh.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Second)
		if err := s.CreateWebhook(ctx(), wh); err != nil {
			t.Fatal(err)
		}
		last = wh
	}
	// A different subscription's webhook must not leak in.
	if err := s.CreateWebhook(ctx(), newWebhook(id.NewSubscriptionID(), webhook.StatusPending)); err != nil {
		t.Fatal(err)
	}

	got, err := s.ListBySubscription(ctx(), subID, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected limit 2, got %d", len(got))
	}
	if got[0].ID != last.ID {
		t.Fatal("expected newest webhook first")
	}
}

func TestCountByStatus(t *testing.T) {
	s := memory.New()
	subID := id.NewSubscriptionID()
	for _, status := range []webhook.Status{
		webhook.StatusPending, webhook.StatusPending, webhook.StatusFailed,
	} {
		if err := s.CreateWebhook(ctx(), newWebhook(subID, status)); err != nil {
			t.Fatal(err)
		}
	}

	n, err := s.CountByStatus(ctx(), webhook.StatusPending)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("expected 2 pending, got %d", n)
	}
}

func TestDeleteAttemptsBefore(t *testing.T) {
	s := memory.New()
	whID := id.NewWebhookID()
	now := time.Now().UTC()

	for i, age := range []time.Duration{-100 * time.Hour, -50 * time.Hour, -time.Hour} {
		err := s.AppendAttempt(ctx(), &webhook.DeliveryAttempt{
			ID:            id.NewAttemptID(),
			WebhookID:     whID,
			AttemptNumber: i + 1,
			Timestamp:     now.Add(age),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	deleted, err := s.DeleteAttemptsBefore(ctx(), now.Add(-72*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted, got %d", deleted)
	}

	remaining, err := s.ListAttempts(ctx(), whID)
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 2 {
		t.Fatalf("expected 2 remaining, got %d", len(remaining))
	}
}

func TestStoreCopiesOnTheBoundary(t *testing.T) {
	s := memory.New()
	wh := newWebhook(id.NewSubscriptionID(), webhook.StatusPending)
	if err := s.CreateWebhook(ctx(), wh); err != nil {
		t.Fatal(err)
	}

	// Mutating the caller's copy must not affect the stored record.
	wh.Status = webhook.StatusFailed

	got, err := s.GetWebhook(ctx(), wh.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != webhook.StatusPending {
		t.Fatalf("stored record was mutated through a caller reference: %s", got.Status)
	}
}
