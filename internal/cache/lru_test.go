package cache

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time           { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache(size int, ttl time.Duration) (*LRUCache[int], *fakeClock) {
	c := NewLRUCache[int](size, ttl)
	clk := &fakeClock{t: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	c.now = clk.now
	return c, clk
}

func TestLRUCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := newTestCache(2, time.Hour)
	var evicted []string
	c.OnEvict(func(key string, _ int) { evicted = append(evicted, key) })

	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("a = %d, %v", v, ok)
	}
	if len(evicted) != 1 || evicted[0] != "b" {
		t.Fatalf("evicted = %v", evicted)
	}
	if c.Size() != 2 {
		t.Fatalf("Size = %d", c.Size())
	}
}

func TestLRUCache_TTLSlidesOnRead(t *testing.T) {
	c, clk := newTestCache(10, time.Minute)
	c.Set("s", 7)

	clk.advance(50 * time.Second)
	if _, ok := c.Get("s"); !ok {
		t.Fatal("item should be live")
	}
	clk.advance(50 * time.Second)
	if _, ok := c.Get("s"); !ok {
		t.Fatal("read should have renewed the expiry")
	}
	clk.advance(61 * time.Second)
	if _, ok := c.Get("s"); ok {
		t.Fatal("idle item should have expired")
	}
}

func TestLRUCache_GetOrCreate(t *testing.T) {
	c, clk := newTestCache(10, time.Minute)
	calls := 0
	create := func() int { calls++; return calls }

	v, created := c.GetOrCreate("k", create)
	if !created || v != 1 {
		t.Fatalf("first: %d %v", v, created)
	}
	v, created = c.GetOrCreate("k", create)
	if created || v != 1 {
		t.Fatalf("second: %d %v", v, created)
	}

	clk.advance(2 * time.Minute)
	v, created = c.GetOrCreate("k", create)
	if !created || v != 2 {
		t.Fatalf("after expiry: %d %v", v, created)
	}
}

func TestLRUCache_CleanExpiredAndDelete(t *testing.T) {
	c, clk := newTestCache(10, time.Minute)
	evictions := 0
	c.OnEvict(func(string, int) { evictions++ })

	c.Set("old", 1)
	clk.advance(2 * time.Minute)
	c.Set("new", 2)
	c.Set("gone", 3)
	c.Delete("gone")

	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("CleanExpired = %d, want 1", n)
	}
	if c.Size() != 1 || evictions != 1 {
		t.Fatalf("size=%d evictions=%d", c.Size(), evictions)
	}
}

func TestManager_SweepAndStop(t *testing.T) {
	c, clk := newTestCache(10, time.Minute)
	c.Set("x", 1)
	clk.advance(time.Hour)

	m := NewManager(nil)
	m.Register(c)
	if n := m.Sweep(); n != 1 {
		t.Fatalf("Sweep = %d", n)
	}

	m.StartCleanup(time.Millisecond)
	m.Stop()
	m.Stop()

	// Stop without start must not block.
	NewManager(nil).Stop()
}
