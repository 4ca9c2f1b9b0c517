package cache

import (
	"context"
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func TestLRUCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a missing")
	}
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("a = %v, %v", v, ok)
	}
	if c.Size() != 2 {
		t.Fatalf("size = %d", c.Size())
	}
}

func TestLRUCacheSlidingExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](10, 10*time.Minute).WithClock(clock.now)
	c.Set("s", "ann")

	clock.advance(9 * time.Minute)
	if _, ok := c.Get("s"); !ok {
		t.Fatal("entry expired too early")
	}
	clock.advance(9 * time.Minute)
	if _, ok := c.Get("s"); !ok {
		t.Fatal("read did not extend expiry")
	}
	clock.advance(11 * time.Minute)
	if _, ok := c.Get("s"); ok {
		t.Fatal("entry should have expired")
	}
}

func TestLRUCacheUpdate(t *testing.T) {
	c := NewLRUCache[string](10, time.Minute)
	c.Set("t1", "ann")
	c.Set("t2", "bob")
	c.Set("t3", "ann")

	dropped := c.Update(func(_ string, v string) (string, bool) {
		if v == "bob" {
			return v, false
		}
		return "Ann", true
	})
	if dropped != 1 || c.Size() != 2 {
		t.Fatalf("dropped=%d size=%d", dropped, c.Size())
	}
	if v, _ := c.Get("t3"); v != "Ann" {
		t.Fatalf("t3 = %q", v)
	}
}

func TestManagerSweep(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[int](10, time.Second).WithClock(clock.now)
	c.Set("a", 1)
	c.Set("b", 2)
	clock.advance(2 * time.Second)

	m := NewManager(nil)
	m.Register(c)
	if n := m.Sweep(); n != 2 {
		t.Fatalf("swept %d", n)
	}

	m.StartCleanup(context.Background(), time.Hour)
	m.StartCleanup(context.Background(), time.Hour)
	m.Stop()
	m.Stop()
}
