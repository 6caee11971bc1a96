package cache

import "testing"

func TestLRU_EvictsOldest(t *testing.T) {
	c := NewLRU[string, int](2)
	c.Put("a", 1)
	c.Put("b", 2)
	_, _ = c.Get("a") // a becomes most-recent
	c.Put("c", 3)     // should evict b

	if _, ok := c.Get("b"); ok {
		t.Fatal("expected b evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected a present, got %v ok=%v", v, ok)
	}
	if c.Len() != 2 {
		t.Fatalf("len=%d want 2", c.Len())
	}
}

func TestLRU_StructKeysAndPurge(t *testing.T) {
	type key struct {
		version uint64
		q       string
	}
	c := NewLRU[key, []string](4)
	c.Put(key{1, "x"}, []string{"/a"})
	c.Put(key{1, "x"}, []string{"/b"})

	if v, ok := c.Get(key{1, "x"}); !ok || len(v) != 1 || v[0] != "/b" {
		t.Fatalf("got %v ok=%v", v, ok)
	}
	if _, ok := c.Get(key{2, "x"}); ok {
		t.Fatal("expected miss for a different version")
	}

	c.Purge()
	if c.Len() != 0 {
		t.Fatalf("len=%d after purge", c.Len())
	}
}

func TestLRU_NilSafe(t *testing.T) {
	var c *LRU[string, int]
	c.Put("a", 1)
	if _, ok := c.Get("a"); ok || c.Len() != 0 {
		t.Fatal("nil cache must be inert")
	}
}
