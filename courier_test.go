package courier_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/courier"
	"github.com/xraph/courier/signature"
	"github.com/xraph/courier/store/memory"
	"github.com/xraph/courier/subscription"
	"github.com/xraph/courier/webhook"
)

func ctx() context.Context { return context.Background() }

func setup(t *testing.T, opts ...courier.Option) *courier.Courier {
	t.Helper()
	opts = append([]courier.Option{courier.WithStore(memory.New())}, opts...)
	c, err := courier.New(opts...)
	if err != nil {
		t.Fatal(err)
	}
	c.Start(ctx())
	t.Cleanup(func() { c.Stop(ctx()) })
	return c
}

func createSubscription(t *testing.T, c *courier.Courier, targetURL, secret string) *subscription.Subscription {
	t.Helper()
	sub, err := c.Subscriptions().Create(ctx(), subscription.Input{
		TargetURL: targetURL,
		Secret:    secret,
	})
	if err != nil {
		t.Fatal(err)
	}
	return sub
}

func TestNewRequiresStore(t *testing.T) {
	if _, err := courier.New(); !errors.Is(err, courier.ErrNoStore) {
		t.Fatalf("expected ErrNoStore, got %v", err)
	}
}

func TestEndToEndDelivered(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := setup(t)
	sub := createSubscription(t, c, srv.URL, "whsec_e2e")

	payload := []byte(`{"invoice":"inv_123","amount":100}`)
	whID, err := c.Ingest(ctx(), sub.ID, "invoice.created", payload, signature.Sign(payload, "whsec_e2e"))
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(10 * time.Second)
	var wh *webhook.Webhook
	for time.Now().Before(deadline) {
		wh, err = c.Webhook(ctx(), whID)
		if err != nil {
			t.Fatal(err)
		}
		if wh.Status.IsTerminal() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if wh.Status != webhook.StatusDelivered {
		t.Fatalf("expected DELIVERED, got %s", wh.Status)
	}
	if hits.Load() != 1 {
		t.Fatalf("expected exactly 1 delivery, got %d", hits.Load())
	}

	attempts, err := c.Attempts(ctx(), whID)
	if err != nil {
		t.Fatal(err)
	}
	if len(attempts) != 1 || !attempts[0].IsSuccess {
		t.Fatalf("unexpected attempt ledger: %+v", attempts)
	}
}

func TestEndToEndExhaustsRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := setup(t,
		courier.WithMaxRetries(3),
		courier.WithBackoff([]time.Duration{10 * time.Millisecond}),
	)
	sub := createSubscription(t, c, srv.URL, "")

	payload := []byte(`{"doomed":true}`)
	whID, err := c.Ingest(ctx(), sub.ID, "", payload, "")
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(10 * time.Second)
	var wh *webhook.Webhook
	for time.Now().Before(deadline) {
		wh, err = c.Webhook(ctx(), whID)
		if err != nil {
			t.Fatal(err)
		}
		if wh.Status.IsTerminal() {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	if wh.Status != webhook.StatusFailed {
		t.Fatalf("expected FAILED, got %s", wh.Status)
	}
	if wh.RetryCount != 3 {
		t.Fatalf("expected retry count 3, got %d", wh.RetryCount)
	}
	if got := hits.Load(); got != 3 {
		t.Fatalf("expected exactly 3 network tries, got %d", got)
	}

	attempts, err := c.Attempts(ctx(), whID)
	if err != nil {
		t.Fatal(err)
	}
	if len(attempts) != 3 {
		t.Fatalf("expected 3 attempts in the ledger, got %d", len(attempts))
	}
	for i, att := range attempts {
		if att.AttemptNumber != i+1 {
			t.Fatalf("attempt numbers not gapless: %+v", attempts)
		}
		if att.IsSuccess {
			t.Fatal("failed delivery recorded a successful attempt")
		}
	}
}

func TestIngestRejectionsSurfaceRootErrors(t *testing.T) {
	c := setup(t)
	sub := createSubscription(t, c, "https://example.com/hooks", "whsec_e2e")

	payload := []byte(`{}`)

	if _, err := c.Ingest(ctx(), sub.ID, "", payload, ""); !errors.Is(err, courier.ErrSignatureMissing) {
		t.Fatalf("expected ErrSignatureMissing, got %v", err)
	}
	if _, err := c.Ingest(ctx(), sub.ID, "", payload, "sha256=deadbeef"); !errors.Is(err, courier.ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}

	inactive := false
	if _, err := c.Subscriptions().Update(ctx(), sub.ID, subscription.Input{Active: &inactive}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Ingest(ctx(), sub.ID, "", payload, signature.Sign(payload, "whsec_e2e")); !errors.Is(err, courier.ErrSubscriptionInactive) {
		t.Fatalf("expected ErrSubscriptionInactive, got %v", err)
	}
}

func TestWebhooksHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := setup(t)
	sub := createSubscription(t, c, srv.URL, "")

	for i := 0; i < 3; i++ {
		if _, err := c.Ingest(ctx(), sub.ID, "", []byte(`{}`), ""); err != nil {
			t.Fatal(err)
		}
	}

	whs, err := c.Webhooks(ctx(), sub.ID, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(whs) != 2 {
		t.Fatalf("expected limit 2, got %d", len(whs))
	}
}
