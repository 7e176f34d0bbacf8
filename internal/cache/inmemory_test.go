package cache_test

import (
	"errors"
	"testing"
	"time"

	"github.com/relaydesk/tenantguard/internal/cache"
)

func TestInMemoryRoundtrip(t *testing.T) {
	t.Parallel()

	c := cache.NewInMemory(t.Context())

	if err := c.Set(t.Context(), "k", []byte("v"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}

	got, err := c.Get(t.Context(), "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "v" {
		t.Errorf("got %q, want \"v\"", got)
	}
}

func TestInMemoryMiss(t *testing.T) {
	t.Parallel()

	c := cache.NewInMemory(t.Context())

	if _, err := c.Get(t.Context(), "missing"); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestInMemoryTTLExpiry(t *testing.T) {
	t.Parallel()

	c := cache.NewInMemory(t.Context())

	if err := c.Set(t.Context(), "k", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}

	time.Sleep(30 * time.Millisecond)

	if _, err := c.Get(t.Context(), "k"); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound after expiry", err)
	}
}

func TestInMemoryDelete(t *testing.T) {
	t.Parallel()

	c := cache.NewInMemory(t.Context())

	if err := c.Set(t.Context(), "k", []byte("v"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := c.Delete(t.Context(), "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := c.Get(t.Context(), "k"); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound after delete", err)
	}

	// Deleting a missing key is not an error.
	if err := c.Delete(t.Context(), "k"); err != nil {
		t.Errorf("second delete: %v", err)
	}
}

func TestInMemoryCopiesValues(t *testing.T) {
	t.Parallel()

	c := cache.NewInMemory(t.Context())

	original := []byte("immutable")
	if err := c.Set(t.Context(), "k", original, 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	original[0] = 'X'

	got, err := c.Get(t.Context(), "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "immutable" {
		t.Errorf("stored value aliased the caller's slice: %q", got)
	}

	got[0] = 'Y'

	again, err := c.Get(t.Context(), "k")
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if string(again) != "immutable" {
		t.Errorf("returned value aliased the cache's slice: %q", again)
	}
}

func TestInMemorySetAfterClose(t *testing.T) {
	t.Parallel()

	c := cache.NewInMemory(t.Context())
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if err := c.Set(t.Context(), "k", []byte("v"), 0); err != nil {
		t.Fatalf("set after close: %v", err)
	}
	if _, err := c.Get(t.Context(), "k"); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound from closed cache", err)
	}
}
