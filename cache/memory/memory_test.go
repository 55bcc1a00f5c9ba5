package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/courier/cache/memory"
)

func TestSetGet(t *testing.T) {
	c := memory.New()
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}

	got, ok, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || string(got) != "v" {
		t.Fatalf("Get() = %q, %v", got, ok)
	}
}

func TestGetMiss(t *testing.T) {
	c := memory.New()

	_, ok, err := c.Get(context.Background(), "absent")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected a miss")
	}
}

func TestExpiry(t *testing.T) {
	c := memory.New()
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(30 * time.Millisecond)

	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatal("expired entry served")
	}
}

func TestZeroTTLNeverExpires(t *testing.T) {
	c := memory.New()
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)

	if _, ok, _ := c.Get(ctx, "k"); !ok {
		t.Fatal("zero-TTL entry expired")
	}
}

func TestDelete(t *testing.T) {
	c := memory.New()
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get(ctx, "k"); ok {
		t.Fatal("deleted entry served")
	}
	// Deleting an absent key is not an error.
	if err := c.Delete(ctx, "absent"); err != nil {
		t.Fatal(err)
	}
}
