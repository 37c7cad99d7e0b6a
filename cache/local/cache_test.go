package local

import (
	"context"
	"testing"
	"time"
)

func newTestCache(t *testing.T) *LocalCache {
	t.Helper()
	c, err := NewCache(Config{GCInterval: time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestSetGet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v", 0); err != nil {
		t.Fatal(err)
	}
	v, err := c.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if v != "v" {
		t.Errorf("got %q, want v", v)
	}
}

func TestGetMissing(t *testing.T) {
	c := newTestCache(t)
	if _, err := c.Get(context.Background(), "nope"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestTTLExpiry(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k", "v", 10*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	if _, err := c.Get(ctx, "k"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound after TTL", err)
	}
}

func TestSetNX(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	ok, err := c.SetNX(ctx, "k", "first", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first SetNX = %v, %v", ok, err)
	}
	ok, err = c.SetNX(ctx, "k", "second", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("second SetNX should fail while key is live")
	}
	v, _ := c.Get(ctx, "k")
	if v != "first" {
		t.Errorf("value = %q, want first", v)
	}
}

func TestSetNXAfterExpiry(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if _, err := c.SetNX(ctx, "k", "first", 10*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(20 * time.Millisecond)
	ok, err := c.SetNX(ctx, "k", "second", time.Minute)
	if err != nil || !ok {
		t.Fatalf("SetNX after expiry = %v, %v", ok, err)
	}
}

func TestZSetOrdering(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	_ = c.ZAdd(ctx, "pl", 100, "a")
	_ = c.ZAdd(ctx, "pl", 300, "b")
	_ = c.ZAdd(ctx, "pl", 200, "c")

	top, err := c.ZRevRange(ctx, "pl", 0, -1)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"b", "c", "a"}
	if len(top) != len(want) {
		t.Fatalf("len = %d, want %d", len(top), len(want))
	}
	for i := range want {
		if top[i] != want[i] {
			t.Errorf("top[%d] = %q, want %q", i, top[i], want[i])
		}
	}

	score, err := c.ZScore(ctx, "pl", "c")
	if err != nil {
		t.Fatal(err)
	}
	if score != 200 {
		t.Errorf("score = %f, want 200", score)
	}
}
