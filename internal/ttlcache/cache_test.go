package ttlcache

import (
	"testing"
	"time"
)

func TestSetAndHas(t *testing.T) {
	t.Parallel()

	c := New(time.Minute)
	if c.Has("k") {
		t.Fatal("empty cache reported presence")
	}
	c.Set("k")
	if !c.Has("k") {
		t.Fatal("fresh key reported absent")
	}
}

func TestExpiryIsLazyPerKey(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0)
	c := New(time.Minute)
	c.now = func() time.Time { return now }

	c.Set("hot")
	c.Set("cold")

	now = now.Add(2 * time.Minute)
	if c.Has("hot") {
		t.Fatal("expired key reported present")
	}
	// "cold" was never looked up again; it still occupies the map.
	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1 (lazy expiry keeps unqueried keys)", c.Len())
	}
}

func TestSetResetsWindow(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0)
	c := New(time.Minute)
	c.now = func() time.Time { return now }

	c.Set("k")
	now = now.Add(45 * time.Second)
	c.Set("k")
	now = now.Add(45 * time.Second)

	// 90s after the first Set, but only 45s after the refresh.
	if !c.Has("k") {
		t.Fatal("refreshed key expired against its original window")
	}
}

func TestGetValue(t *testing.T) {
	t.Parallel()

	c := New(time.Minute)
	c.SetValue("k", "v")
	value, ok := c.Get("k")
	if !ok || value != "v" {
		t.Fatalf("Get = (%v, %v), want (v, true)", value, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Fatal("Get reported a missing key present")
	}
}

func TestSweepEvictsExpired(t *testing.T) {
	t.Parallel()

	now := time.Unix(1700000000, 0)
	c := New(time.Minute)
	c.now = func() time.Time { return now }

	c.Set("a")
	c.Set("b")
	now = now.Add(30 * time.Second)
	c.Set("c")
	now = now.Add(45 * time.Second)

	if removed := c.Sweep(); removed != 2 {
		t.Fatalf("Sweep removed %d, want 2", removed)
	}
	if !c.Has("c") {
		t.Fatal("Sweep evicted a live key")
	}
}

func TestWallClockExpiry(t *testing.T) {
	t.Parallel()

	c := New(20 * time.Millisecond)
	c.Set("k")
	if !c.Has("k") {
		t.Fatal("fresh key reported absent")
	}
	time.Sleep(40 * time.Millisecond)
	if c.Has("k") {
		t.Fatal("key survived past its TTL")
	}
}
