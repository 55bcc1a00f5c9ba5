package deliver_test

import (
	"testing"
	"time"

	"github.com/xraph/courier/deliver"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/store/memory"
	"github.com/xraph/courier/webhook"
)

func seedAttempt(t *testing.T, s *memory.Store, whID id.ID, n int, at time.Time) {
	t.Helper()
	err := s.AppendAttempt(ctx(), &webhook.DeliveryAttempt{
		ID:            id.NewAttemptID(),
		WebhookID:     whID,
		AttemptNumber: n,
		Timestamp:     at,
		StatusCode:    503,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestCleanDeletesOnlyExpiredAttempts(t *testing.T) {
	s := memory.New()
	janitor := deliver.NewJanitor(s, time.Hour, 72*time.Hour, nil, nil)

	whID := id.NewWebhookID()
	now := time.Now().UTC()
	seedAttempt(t, s, whID, 1, now.Add(-100*time.Hour))
	seedAttempt(t, s, whID, 2, now.Add(-80*time.Hour))
	seedAttempt(t, s, whID, 3, now.Add(-time.Hour))

	deleted, err := janitor.Clean(ctx())
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deleted attempts, got %d", deleted)
	}

	remaining, err := s.ListAttempts(ctx(), whID)
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 1 {
		t.Fatalf("expected 1 surviving attempt, got %d", len(remaining))
	}
	if remaining[0].AttemptNumber != 3 {
		t.Fatalf("wrong attempt survived: %d", remaining[0].AttemptNumber)
	}
}

func TestCleanIsIdempotent(t *testing.T) {
	s := memory.New()
	janitor := deliver.NewJanitor(s, time.Hour, 72*time.Hour, nil, nil)

	seedAttempt(t, s, id.NewWebhookID(), 1, time.Now().UTC().Add(-100*time.Hour))

	if deleted, err := janitor.Clean(ctx()); err != nil || deleted != 1 {
		t.Fatalf("first pass: deleted=%d err=%v", deleted, err)
	}
	if deleted, err := janitor.Clean(ctx()); err != nil || deleted != 0 {
		t.Fatalf("second pass should delete nothing: deleted=%d err=%v", deleted, err)
	}
}

func TestCleanNeverTouchesWebhooks(t *testing.T) {
	s := memory.New()
	janitor := deliver.NewJanitor(s, time.Hour, 72*time.Hour, nil, nil)

	wh := seedForSweep(t, s, webhook.StatusDelivered, 0, nil)
	seedAttempt(t, s, wh.ID, 1, time.Now().UTC().Add(-100*time.Hour))

	if _, err := janitor.Clean(ctx()); err != nil {
		t.Fatal(err)
	}

	if _, err := s.GetWebhook(ctx(), wh.ID); err != nil {
		t.Fatalf("webhook row should survive retention: %v", err)
	}
}
