package subscription_test

import (
	"context"
	"errors"
	"testing"
	"time"

	cachememory "github.com/xraph/courier/cache/memory"
	"github.com/xraph/courier/store/memory"
	"github.com/xraph/courier/subscription"
)

func ctx() context.Context { return context.Background() }

func setup(t *testing.T) (*subscription.Service, *subscription.Resolver, *memory.Store) {
	t.Helper()
	s := memory.New()
	resolver := subscription.NewResolver(s, cachememory.New(), time.Minute, nil)
	return subscription.NewService(s, resolver, nil), resolver, s
}

func TestAllowsEventType(t *testing.T) {
	tests := []struct {
		name       string
		eventTypes []string
		eventType  string
		want       bool
	}{
		{"empty list allows anything", nil, "invoice.created", true},
		{"empty list allows empty type", nil, "", true},
		{"listed type allowed", []string{"invoice.created", "invoice.paid"}, "invoice.paid", true},
		{"unlisted type rejected", []string{"invoice.created"}, "user.deleted", false},
		{"empty type never filtered", []string{"invoice.created"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &subscription.Subscription{EventTypes: tt.eventTypes}
			if got := sub.AllowsEventType(tt.eventType); got != tt.want {
				t.Fatalf("AllowsEventType(%q) = %v, want %v", tt.eventType, got, tt.want)
			}
		})
	}
}

func TestServiceCreate(t *testing.T) {
	svc, _, _ := setup(t)

	sub, err := svc.Create(ctx(), subscription.Input{
		TargetURL:  "https://example.com/hooks",
		Secret:     "whsec_abc",
		EventTypes: []string{"invoice.created"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if !sub.Active {
		t.Fatal("new subscription should be active")
	}
	if sub.ID.IsNil() {
		t.Fatal("expected subscription ID to be assigned")
	}
}

func TestServiceCreateInvalidURL(t *testing.T) {
	svc, _, _ := setup(t)

	_, err := svc.Create(ctx(), subscription.Input{TargetURL: "not a url"})

	var verr *subscription.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Field != "target_url" {
		t.Fatalf("expected target_url field, got %q", verr.Field)
	}
}

func TestServiceUpdatePartial(t *testing.T) {
	svc, _, _ := setup(t)

	sub, err := svc.Create(ctx(), subscription.Input{
		TargetURL: "https://example.com/hooks",
		Secret:    "whsec_abc",
	})
	if err != nil {
		t.Fatal(err)
	}

	inactive := false
	updated, err := svc.Update(ctx(), sub.ID, subscription.Input{Active: &inactive})
	if err != nil {
		t.Fatal(err)
	}

	if updated.Active {
		t.Fatal("expected subscription to be deactivated")
	}
	if updated.TargetURL != sub.TargetURL {
		t.Fatalf("target URL changed unexpectedly: %q", updated.TargetURL)
	}
	if updated.Secret != "whsec_abc" {
		t.Fatal("secret changed unexpectedly")
	}
}

func TestServiceUpdateInvalidatesCache(t *testing.T) {
	svc, resolver, _ := setup(t)

	sub, err := svc.Create(ctx(), subscription.Input{TargetURL: "https://example.com/hooks"})
	if err != nil {
		t.Fatal(err)
	}

	// Warm the cache.
	if _, err := resolver.Resolve(ctx(), sub.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Update(ctx(), sub.ID, subscription.Input{TargetURL: "https://example.org/hooks"}); err != nil {
		t.Fatal(err)
	}

	got, err := resolver.Resolve(ctx(), sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.TargetURL != "https://example.org/hooks" {
		t.Fatalf("resolver served stale target URL %q after update", got.TargetURL)
	}
}

func TestServiceDelete(t *testing.T) {
	svc, resolver, _ := setup(t)

	sub, err := svc.Create(ctx(), subscription.Input{TargetURL: "https://example.com/hooks"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := resolver.Resolve(ctx(), sub.ID); err != nil {
		t.Fatal(err)
	}

	if err := svc.Delete(ctx(), sub.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := resolver.Resolve(ctx(), sub.ID); !errors.Is(err, subscription.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestResolverServesCachedCopy(t *testing.T) {
	svc, resolver, store := setup(t)

	sub, err := svc.Create(ctx(), subscription.Input{
		TargetURL: "https://example.com/hooks",
		Secret:    "whsec_abc",
	})
	if err != nil {
		t.Fatal(err)
	}

	first, err := resolver.Resolve(ctx(), sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	if first.Secret != "whsec_abc" {
		t.Fatal("secret lost on first resolve")
	}

	// Mutate the store behind the resolver's back. The cached copy should
	// still be served until the TTL or an explicit invalidation.
	raw, err := store.GetSubscription(ctx(), sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	raw.TargetURL = "https://changed.example.com"
	if err := store.UpdateSubscription(ctx(), raw); err != nil {
		t.Fatal(err)
	}

	second, err := resolver.Resolve(ctx(), sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	if second.TargetURL != "https://example.com/hooks" {
		t.Fatalf("expected cached target URL, got %q", second.TargetURL)
	}
	if second.Secret != "whsec_abc" {
		t.Fatal("secret did not survive the cache round trip")
	}
}
